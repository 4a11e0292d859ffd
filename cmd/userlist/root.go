package main

import (
	"fmt"
	"os"

	"github.com/Sternrassler/userlist/internal/config"
	"github.com/Sternrassler/userlist/internal/user"
	"github.com/Sternrassler/userlist/pkg/client"
	"github.com/Sternrassler/userlist/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

// app carries the loaded configuration from the root command to its subcommands.
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	v := config.New()

	cmd := &cobra.Command{
		Use:          "userlist",
		Short:        "Browse and export a paginated user listing",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./userlist.yaml or ~/.config/userlist/userlist.yaml)")
	flags.String("base-url", "", "listing service base URL")
	flags.String("resource", "", "listing resource path (default users)")
	flags.Int("page-size", 0, "items per page (default 10)")
	flags.String("sort", "", fmt.Sprintf("sort key, one of %q", user.SortKeys[1:]))
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("redis", "", "Redis address for the page cache (empty disables)")

	for key, flag := range map[string]string{
		"listing.base_url":  "base-url",
		"listing.resource":  "resource",
		"listing.page_size": "page-size",
		"listing.sort":      "sort",
		"logging.level":     "log-level",
		"redis.addr":        "redis",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(newBrowseCmd(a), newExportCmd(a))
	return cmd
}

// newClient builds the listing client and, when configured, its Redis
// connection. The returned cleanup closes both.
func (a *app) newClient() (*client.Client, func(), error) {
	rdb := a.cfg.NewRedisClient()

	c, err := client.New(a.cfg.ClientConfig(rdb))
	if err != nil {
		if rdb != nil {
			rdb.Close()
		}
		return nil, nil, fmt.Errorf("create listing client: %w", err)
	}

	if !a.cfg.SortKnown() {
		log.Debug().Str("sort", a.cfg.Listing.Sort).Msg("Sort key is not a built-in key, forwarding as is")
	}

	return c, func() {
		c.Close()
		closeRedis(rdb)
	}, nil
}

func closeRedis(rdb *redis.Client) {
	if rdb == nil {
		return
	}
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Redis client")
	}
}

// setupStderrLogging routes logs to stderr for non-interactive commands.
func (a *app) setupStderrLogging() {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(a.cfg.Logging.Level),
		Pretty: a.cfg.Logging.Pretty,
		Output: os.Stderr,
	})
}
