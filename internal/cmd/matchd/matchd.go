// Package matchd parses matchd flags and starts the websocket match service.
package matchd

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/haldane-games/crucible/internal/games/dicedual"
	matchruntime "github.com/haldane-games/crucible/internal/match"
	entrypoint "github.com/haldane-games/crucible/internal/platform/cmd"
	matchsvc "github.com/haldane-games/crucible/internal/services/match"
	"github.com/haldane-games/crucible/internal/storage"
	"github.com/haldane-games/crucible/internal/storage/sqlite"
)

// ParseConfig parses environment and flags into the service configuration.
func ParseConfig(fs *flag.FlagSet, args []string) (matchsvc.Config, error) {
	var cfg matchsvc.Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return matchsvc.Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "websocket listen address")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "sqlite database path (empty disables the event journal)")
	fs.IntVar(&cfg.MaxBatchSize, "max-batch", cfg.MaxBatchSize, "maximum commands per batch")
	fs.DurationVar(&cfg.InteractionTimeout, "interaction-timeout", cfg.InteractionTimeout, "soft timeout for pending prompts (reserved)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return matchsvc.Config{}, err
	}
	return cfg, nil
}

// Run starts the match service.
func Run(ctx context.Context, cfg matchsvc.Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMatchd, func(ctx context.Context) error {
		var archive storage.EventStore
		var records storage.MatchStore
		if cfg.DatabasePath != "" {
			store, err := sqlite.Open(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Printf("close store: %v", err)
				}
			}()
			archive = store
			records = store
		}

		manager := matchruntime.NewManager()
		defer func() {
			if err := manager.Close(); err != nil {
				log.Printf("close matches: %v", err)
			}
		}()

		domain := dicedual.Domain{}
		manager.RegisterGame(domain.GameID(), func(ctx context.Context, matchID string, seed int64) (matchruntime.Session, error) {
			m, err := matchruntime.New(ctx, matchruntime.Config[dicedual.State]{
				ID:           matchID,
				Domain:       domain,
				Seed:         seed,
				MaxBatchSize: cfg.MaxBatchSize,
				Archive:      archive,
				Records:      records,
			})
			if err != nil {
				return nil, err
			}
			return m, nil
		})

		service := matchsvc.New(manager, log.Default())
		service.RegisterDecoder(domain.GameID(), dicedual.DecodeWirePayload)
		return service.Run(ctx, cfg.Addr)
	})
}
