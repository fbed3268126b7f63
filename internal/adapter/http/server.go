package http

import (
	"net/http"
	"time"

	"github.com/bnema/scribe/internal/infrastructure/logger"
	"github.com/bnema/scribe/internal/service"
	"github.com/rs/zerolog"
)

type Server struct {
	mux       *http.ServeMux
	handlers  *Handlers
	wsHandler *WSHandler
	log       zerolog.Logger
}

func NewServer(svc TranscriptionService, eventBus *service.EventBus, uploadDir string, maxSizeMB int) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		handlers:  NewHandlers(svc, uploadDir, maxSizeMB),
		wsHandler: NewWSHandler(eventBus),
		log:       logger.WithComponent("http"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/transcription/process", s.handlers.Process())
	s.mux.HandleFunc("GET /api/transcription/status/{jobId}", s.handlers.Status())
	s.mux.HandleFunc("GET /api/transcription/history", s.handlers.History())
	s.mux.HandleFunc("GET /api/transcription/models", s.handlers.Models())
	s.mux.HandleFunc("POST /api/transcription/download-model/{modelName}", s.handlers.DownloadModel())
	s.mux.HandleFunc("POST /api/transcription/cancel/{jobId}", s.handlers.Cancel())
	s.mux.HandleFunc("GET /api/transcription/events", s.wsHandler.Events())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Dur("elapsed", time.Since(start)).
		Msg("request")
}
