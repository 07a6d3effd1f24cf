package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/firedoc/internal/config"
	"github.com/tonimelisma/firedoc/internal/local"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/local/persistence/memkv"
	"github.com/tonimelisma/firedoc/internal/local/persistence/sqlitekv"
)

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagBackend    string
	flagDBPath     string
	flagUser       string
	flagDebug      bool
)

// CLIContext bundles the resolved config, an open LocalStore, and the
// logger every subcommand needs. Built once in PersistentPreRunE.
type CLIContext struct {
	Cfg    *config.StoreConfig
	Store  *local.LocalStore
	Logger *slog.Logger
	closer func() error
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "firedoc-inspect",
		Short:         "Read-only introspection for a firedoc local store",
		Long:          "Inspect a firedoc local store: list active listen targets, dump a document's pending overlay, and run read-only queries.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return openStore(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return closeStore(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "persistence backend override: sqlite or memory")
	cmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "sqlite database path override")
	cmd.PersistentFlags().StringVar(&flagUser, "user", "anonymous", "local user id whose store state to inspect")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	cmd.AddCommand(newTargetsCmd())
	cmd.AddCommand(newOverlayCmd())
	cmd.AddCommand(newQueryCmd())

	return cmd
}

func buildLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagDebug {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore resolves configuration, opens the selected persistence backend,
// and stashes a LocalStore plus its closer in the command's context.
func openStore(cmd *cobra.Command) error {
	logger := buildLogger()

	cli := config.CLIOverrides{ConfigPath: flagConfigPath, Backend: flagBackend, Path: flagDBPath}
	env := config.ReadEnvOverrides()

	cfg, err := config.Resolve(env, cli, logger)
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		store  persistence.Store
		closer func() error
	)

	switch cfg.Persistence.Backend {
	case config.BackendMemory:
		s, err := memkv.Open(":memory:")
		if err != nil {
			return fmt.Errorf("opening memory store: %w", err)
		}

		store, closer = s, s.Close
	default:
		s, err := sqlitekv.Open(ctx, cfg.Persistence.Path, logger)
		if err != nil {
			return fmt.Errorf("opening sqlite store %s: %w", cfg.Persistence.Path, err)
		}

		store, closer = s, s.Close
	}

	gcPolicy := local.GCEager
	if cfg.GC.Policy == config.GCPolicyLRU {
		gcPolicy = local.GCLRU
	}

	ls := local.NewLocalStore(store, flagUser, gcPolicy, logger)

	cc := &CLIContext{Cfg: cfg, Store: ls, Logger: logger, closer: closer}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

func closeStore(cmd *cobra.Command) error {
	cc := cliContextFrom(cmd.Context())
	if cc == nil || cc.closer == nil {
		return nil
	}

	return cc.closer()
}
