package tui

import (
	"context"

	"github.com/Sternrassler/userlist/internal/user"
	"github.com/Sternrassler/userlist/pkg/pagination"
	tea "github.com/charmbracelet/bubbletea"
)

// loadPageCmd runs one fetcher call. first selects LoadFirstPage, which replaces
// the items, over LoadNextPage, which appends.
func loadPageCmd(ctx context.Context, cancel context.CancelFunc, f *pagination.PagedFetcher[user.User], sort string, gen int, first bool) tea.Cmd {
	return func() tea.Msg {
		defer cancel()

		var (
			page pagination.Page[user.User]
			err  error
		)
		if first {
			page, err = f.LoadFirstPage(ctx, sort)
		} else {
			page, err = f.LoadNextPage(ctx, sort)
		}
		return pageLoadedMsg{gen: gen, first: first, received: len(page.Items), err: err}
	}
}
