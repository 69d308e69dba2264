// Package framework is a minimal web framework.
package framework

import (
	"net/http"
	"os"
	"syscall"

	"github.com/tbd54566975/issuer-service/config"
)

// Server is the entrypoint into our application and what configures our context object for each of our http router.
type Server struct {
	*http.Server
	shutdown chan os.Signal
}

// NewServer creates a Server that serves handler with the configured timeouts.
func NewServer(cfg config.ServerConfig, handler http.Handler, shutdown chan os.Signal) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              cfg.APIHost,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		shutdown: shutdown,
	}
}

// SignalShutdown is used to gracefully shut down the server when an integrity issue is identified.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}
