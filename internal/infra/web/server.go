package web

import (
	"net/http"

	"ai-demo-builder/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the render API: fire-and-forget submission plus the
// out-of-band status poll the UI drives its progress bar from.
type Server struct {
	submitUC usecase.SubmitUseCase
	statusUC usecase.StatusUseCase
	log      *zerolog.Logger
}

func NewServer(submitUC usecase.SubmitUseCase, statusUC usecase.StatusUseCase, logger *zerolog.Logger) *Server {
	slog := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{submitUC: submitUC, statusUC: statusUC, log: &slog}
}

// Router builds the chi router for the whole API surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/api/v1/render", s.handleSubmit)
	r.Get("/api/v1/render/{subjectID}/status", s.handleStatus)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
