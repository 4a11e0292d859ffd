package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Sternrassler/userlist/internal/user"
	"github.com/Sternrassler/userlist/pkg/client"
	"github.com/Sternrassler/userlist/pkg/pagination"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type exportOptions struct {
	format       string
	output       string
	allowPartial bool
}

func newExportCmd(a *app) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch every page concurrently and write all users",
		Example: `  # Export all users as YAML
  userlist export --format yaml > users.yaml

  # Export sorted by creation date into a file
  userlist export --sort -createdAt -o users.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, a, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.allowPartial, "allow-partial", false, "write the users fetched before a failure")

	return cmd
}

func runExport(cmd *cobra.Command, a *app, opts *exportOptions) error {
	if opts.format != "json" && opts.format != "yaml" {
		return fmt.Errorf("unsupported format %q (want json or yaml)", opts.format)
	}

	a.setupStderrLogging()

	c, cleanup, err := a.newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	bf := pagination.NewBatchFetcher[user.User](
		client.NewSource[user.User](c, a.cfg.Listing.Resource),
		pagination.BatchConfig{
			Name:           "export",
			PageSize:       a.cfg.Export.PageSize,
			MaxConcurrency: a.cfg.Export.Concurrency,
			Timeout:        a.cfg.Export.Timeout,
		},
	)

	users, fetchErr := bf.FetchAll(cmd.Context(), a.cfg.Listing.Sort)
	if fetchErr != nil && !opts.allowPartial {
		return fmt.Errorf("export stopped after %d users: %w", len(users), fetchErr)
	}
	if fetchErr != nil {
		log.Warn().Err(fetchErr).Int("users", len(users)).Msg("Export incomplete, writing partial result")
	}

	if opts.output == "" {
		if err := writeUsers(cmd.OutOrStdout(), opts.format, users); err != nil {
			return err
		}
	} else {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		if err := writeAndClose(f, opts.format, users); err != nil {
			return err
		}
	}

	log.Info().
		Int("users", len(users)).
		Str("format", opts.format).
		Str("sort", a.cfg.Listing.Sort).
		Bool("partial", fetchErr != nil).
		Msg("Export finished")

	if fetchErr != nil {
		return fmt.Errorf("export incomplete after %d users: %w", len(users), fetchErr)
	}
	return nil
}

// writeAndClose writes users to wc and closes it. A failed Close is reported
// because buffered data may only be flushed there.
func writeAndClose(wc io.WriteCloser, format string, users []user.User) (err error) {
	defer func() {
		if cerr := wc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()
	return writeUsers(wc, format, users)
}

func writeUsers(w io.Writer, format string, users []user.User) error {
	if users == nil {
		users = []user.User{}
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string][]user.User{"users": users}); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(users); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}
