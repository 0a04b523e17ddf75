package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/talkroom/internal/auth"
	"github.com/Tyrowin/talkroom/internal/config"
	"github.com/Tyrowin/talkroom/internal/logging"
	"github.com/gorilla/websocket"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Config config.Config
	Logger logging.Logger
	Hub    *Hub
	Auth   *auth.Service
	Guard  *auth.Guard
}

// Server holds the page router's dependencies. Its Routes method builds the
// http.Handler served by CreateServer.
type Server struct {
	cfg      config.Config
	log      logging.Logger
	hub      *Hub
	auth     *auth.Service
	guard    *auth.Guard
	origins  *OriginPolicy
	upgrader websocket.Upgrader
	pages    *renderer
	now      func() time.Time
}

// NewServer validates deps and prepares templates and the socket upgrader.
func NewServer(deps Deps) (*Server, error) {
	if deps.Hub == nil || deps.Auth == nil || deps.Guard == nil {
		return nil, errors.New("server: hub, auth service and guard are required")
	}
	log := deps.Logger
	if log == nil {
		log = logging.Discard()
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		cfg:     deps.Config,
		log:     log.With("component", "http"),
		hub:     deps.Hub,
		auth:    deps.Auth,
		guard:   deps.Guard,
		origins: NewOriginPolicy(deps.Config.AllowedOrigins, log),
		pages:   pages,
		now:     time.Now,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.Check,
	}
	return s, nil
}

func (s *Server) clientLimits() ClientLimits {
	return ClientLimits{
		MaxMessageSize: s.cfg.MaxMessageSize,
		Burst:          s.cfg.RateLimit.Burst,
		RefillInterval: s.cfg.RateLimit.RefillInterval,
	}
}
