package match

import (
	"context"
	"sync"

	"github.com/haldane-games/crucible/internal/adjudication"
	"github.com/haldane-games/crucible/internal/engine"
	apperrors "github.com/haldane-games/crucible/internal/platform/errors"
	"github.com/haldane-games/crucible/internal/platform/id"
)

// Session is the game-agnostic view of a running match. Match[G] implements
// it for any core type, which is what lets the manager and the websocket
// service host different games side by side.
type Session interface {
	ID() string
	GameID() string
	Submit(ctx context.Context, cmd engine.Command) (Outcome, error)
	SubmitBatch(ctx context.Context, commands []engine.Command) (Outcome, error)
	Connect(ctx context.Context, playerID string) error
	Disconnect(ctx context.Context, playerID string) (adjudication.Decision, error)
	Delta(ctx context.Context, lastSeenID int64) (engine.Delta, error)
	StateJSON(ctx context.Context) ([]byte, error)
	Close() error
}

var _ Session = (*Match[struct{}])(nil)

// Factory builds a session for a new match of one game.
type Factory func(ctx context.Context, matchID string, seed int64) (Session, error)

// Manager is the registry of live matches and the games they can be
// created from.
type Manager struct {
	mu        sync.Mutex
	factories map[string]Factory
	matches   map[string]Session
}

// NewManager builds an empty manager.
func NewManager() *Manager {
	return &Manager{
		factories: map[string]Factory{},
		matches:   map[string]Session{},
	}
}

// RegisterGame makes a game available for match creation.
func (m *Manager) RegisterGame(gameID string, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[gameID] = factory
}

// Create starts a new match of the given game with a generated id.
func (m *Manager) Create(ctx context.Context, gameID string, seed int64) (Session, error) {
	m.mu.Lock()
	factory, ok := m.factories[gameID]
	m.mu.Unlock()
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeMatchUnknownGame,
			"no such game is registered",
			map[string]string{"game_id": gameID})
	}

	matchID, err := id.NewID()
	if err != nil {
		return nil, err
	}

	session, err := factory(ctx, matchID, seed)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.matches[matchID] = session
	m.mu.Unlock()
	return session, nil
}

// Get returns a live match by id.
func (m *Manager) Get(matchID string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.matches[matchID]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeMatchNotFound,
			"match not found",
			map[string]string{"match_id": matchID})
	}
	return session, nil
}

// Remove closes one match and forgets it.
func (m *Manager) Remove(matchID string) error {
	m.mu.Lock()
	session, ok := m.matches[matchID]
	delete(m.matches, matchID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return session.Close()
}

// Close stops every live match.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]Session, 0, len(m.matches))
	for _, session := range m.matches {
		sessions = append(sessions, session)
	}
	m.matches = map[string]Session{}
	m.mu.Unlock()

	var firstErr error
	for _, session := range sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
