package http

import (
	"context"
	"net/http"

	"github.com/DRSN-tech/go-similarity/internal/cfg"
)

const maxHeaderBytes = 1 << 20

type Server struct {
	httpServer *http.Server
}

// NewServer создаёт HTTP-сервер. Таймаут чтения заголовков равен ReadTimeout,
// тело загрузки ограничивается самими обработчиками.
func NewServer(handler http.Handler, cfg *cfg.HTTPConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    maxHeaderBytes,
		},
	}
}

func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Stop дожидается завершения текущих запросов, при отмене ctx закрывает соединения.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
		return err
	}
	return nil
}
