// Package match exposes the match runtime over websockets. One socket hosts
// one player in one match: the client creates or joins a match, submits
// commands or batches, and receives event deltas against its own stream
// cursor. Joining and leaving keep the runtime's connection metadata
// current, which is what arms the disconnect adjudicator.
package match

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	matchruntime "github.com/haldane-games/crucible/internal/match"
)

// PayloadDecoder turns a wire payload into the typed payload a game's
// domain expects.
type PayloadDecoder func(cmdType string, payload json.RawMessage) (any, error)

// Config holds the service's environment configuration.
type Config struct {
	Addr         string `env:"CRUCIBLE_MATCH_ADDR" envDefault:":8090"`
	DatabasePath string `env:"CRUCIBLE_MATCH_DB"`
	MaxBatchSize int    `env:"CRUCIBLE_MATCH_MAX_BATCH" envDefault:"20"`
	// InteractionTimeout is reserved for a soft prompt timeout. The engine
	// does not act on it yet.
	InteractionTimeout time.Duration `env:"CRUCIBLE_MATCH_INTERACTION_TIMEOUT"`
}

// Service is the websocket front end over a match manager.
type Service struct {
	manager  *matchruntime.Manager
	decoders map[string]PayloadDecoder
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// New builds a service around the given manager.
func New(manager *matchruntime.Manager, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		manager:  manager,
		decoders: map[string]PayloadDecoder{},
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterDecoder installs the wire payload decoder for one game.
func (s *Service) RegisterDecoder(gameID string, decoder PayloadDecoder) {
	s.decoders[gameID] = decoder
}

// Handler returns the service's HTTP routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Service) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade: %v", err)
		return
	}

	client := &socketClient{service: s, conn: conn}
	client.serve(r.Context())
}
