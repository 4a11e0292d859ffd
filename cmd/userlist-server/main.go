// Command userlist-server runs a development listing endpoint serving users
// from a YAML fixture or a generated data set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/userlist/internal/config"
	"github.com/Sternrassler/userlist/internal/server"
	"github.com/Sternrassler/userlist/internal/user"
	"github.com/Sternrassler/userlist/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	v := config.New()

	cmd := &cobra.Command{
		Use:          "userlist-server",
		Short:        "Serve a paginated user listing for development",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "config file (default ./userlist.yaml or ~/.config/userlist/userlist.yaml)")
	flags.String("addr", "", "listen address (default :8080)")
	flags.String("fixture", "", "YAML file with a users list")
	flags.Int("users", 0, "number of generated users when no fixture is given (default 250)")
	flags.Int("rate-limit", 0, "requests per minute before 429 (default 600)")
	flags.Duration("latency", 0, "artificial delay per page response")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	for key, flag := range map[string]string{
		"server.addr":       "addr",
		"server.fixture":    "fixture",
		"server.users":      "users",
		"server.rate_limit": "rate-limit",
		"server.latency":    "latency",
		"logging.level":     "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	})

	users, err := loadUsers(cfg.Server)
	if err != nil {
		return err
	}

	srv := newServer(cfg, users)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutdown signal received")
	return srv.Shutdown(context.Background())
}

// loadUsers reads the fixture when one is configured, otherwise generates users.
func loadUsers(cfg config.ServerConfig) ([]user.User, error) {
	if cfg.Fixture != "" {
		users, err := server.LoadFixture(cfg.Fixture)
		if err != nil {
			return nil, fmt.Errorf("load fixture: %w", err)
		}
		return users, nil
	}
	return user.Generate(cfg.Users, time.Now()), nil
}

func newServer(cfg *config.Config, users []user.User) *server.Server {
	serverCfg := server.DefaultConfig()
	serverCfg.Addr = cfg.Server.Addr
	serverCfg.Resource = cfg.Listing.Resource
	serverCfg.RateLimit = cfg.Server.RateLimit
	serverCfg.Latency = cfg.Server.Latency

	return server.New(serverCfg, server.NewStore(users))
}
