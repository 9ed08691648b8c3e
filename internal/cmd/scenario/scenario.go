// Package scenario parses scenario flags and replays Lua match scripts.
package scenario

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/haldane-games/crucible/internal/games/dicedual"
	"github.com/haldane-games/crucible/internal/harness"
	entrypoint "github.com/haldane-games/crucible/internal/platform/cmd"
)

// Config holds scenario command configuration.
type Config struct {
	Path    string `env:"CRUCIBLE_SCENARIO_PATH"`
	Verbose bool   `env:"CRUCIBLE_SCENARIO_VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Path, "path", cfg.Path, "scenario lua file or directory of .lua files")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log each scenario as it runs")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run replays every scenario under the configured path and reports failures.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Path == "" {
		return errors.New("scenario path is required")
	}

	paths, err := collectScripts(cfg.Path)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scenario files under %s", cfg.Path)
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceScenario, func(ctx context.Context) error {
		runner := harness.NewRunner[dicedual.State](dicedual.Domain{},
			harness.WithPayloadDecoder[dicedual.State](dicedual.DecodePayload))

		failed := 0
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			if cfg.Verbose {
				fmt.Fprintf(out, "running %s\n", path)
			}
			script, err := harness.LoadScenario(path)
			if err != nil {
				return fmt.Errorf("load %s: %w", path, err)
			}
			result, err := runner.Run(*script)
			if err != nil {
				return fmt.Errorf("run %s: %w", path, err)
			}
			if result.Passed() {
				fmt.Fprintf(out, "PASS %s (%d steps)\n", result.Name, result.StepsRun)
				continue
			}
			failed++
			fmt.Fprintf(errOut, "FAIL %s\n", result.Name)
			for _, failure := range result.Failures {
				fmt.Fprintf(errOut, "  %s\n", failure)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(paths))
		}
		return nil
	})
}

func collectScripts(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	paths, err := filepath.Glob(filepath.Join(path, "*.lua"))
	if err != nil {
		return nil, fmt.Errorf("glob scenarios: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
