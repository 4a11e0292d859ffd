package main

import (
	"fmt"

	"github.com/Sternrassler/userlist/internal/tui"
	"github.com/Sternrassler/userlist/internal/user"
	"github.com/Sternrassler/userlist/pkg/client"
	"github.com/Sternrassler/userlist/pkg/logging"
	"github.com/Sternrassler/userlist/pkg/pagination"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse users interactively, loading pages as you scroll",
		Example: `  # Browse the local dev server sorted by name
  userlist browse --base-url http://localhost:8080 --sort name`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBrowse(cmd, a)
		},
	}
}

func runBrowse(cmd *cobra.Command, a *app) error {
	// the terminal belongs to the UI, so logs go to a file
	_, closeLog, err := logging.SetupFile(logging.LogLevel(a.cfg.Logging.Level), a.cfg.Logging.File)
	if err != nil {
		return err
	}
	defer closeLog()

	c, cleanup, err := a.newClient()
	if err != nil {
		return err
	}
	defer cleanup()

	listing := a.cfg.Listing
	fetcher := pagination.NewPagedFetcher[user.User](
		client.NewSource[user.User](c, listing.Resource),
		pagination.FetcherConfig{Name: "browse", PageSize: listing.PageSize},
	)

	model := tui.New(fetcher, tui.Options{
		Title:     fmt.Sprintf("%s (%s)", listing.Resource, listing.BaseURL),
		Sort:      listing.Sort,
		Threshold: listing.Threshold,
		Timeout:   listing.Timeout,
	})

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run browser: %w", err)
	}
	return nil
}
