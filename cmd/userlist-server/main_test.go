package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/userlist/internal/config"
	"github.com/Sternrassler/userlist/internal/user"
	"github.com/Sternrassler/userlist/pkg/client"
	"github.com/Sternrassler/userlist/pkg/pagination"
)

const fixture = `users:
  - id: u-1
    name: Ada Lovelace
    email: ada@example.com
    createdAt: 2024-01-01T09:00:00Z
  - id: u-2
    name: Alan Turing
    email: alan@example.com
    createdAt: 2024-01-02T09:00:00Z
`

func TestLoadUsers(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		users, err := loadUsers(config.ServerConfig{Users: 7})
		if err != nil {
			t.Fatalf("loadUsers() error = %v", err)
		}
		if len(users) != 7 {
			t.Errorf("len(users) = %d, want 7", len(users))
		}
	})

	t.Run("fixture", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.yaml")
		if err := os.WriteFile(path, []byte(fixture), 0o600); err != nil {
			t.Fatal(err)
		}

		users, err := loadUsers(config.ServerConfig{Fixture: path, Users: 7})
		if err != nil {
			t.Fatalf("loadUsers() error = %v", err)
		}
		if len(users) != 2 || users[1].Name != "Alan Turing" {
			t.Errorf("loadUsers() = %+v, want the two fixture users", users)
		}
	})

	t.Run("missing_fixture", func(t *testing.T) {
		_, err := loadUsers(config.ServerConfig{Fixture: filepath.Join(t.TempDir(), "none.yaml")})
		if err == nil || !strings.Contains(err.Error(), "load fixture") {
			t.Errorf("loadUsers() error = %v, want load fixture error", err)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	srv := httptest.NewServer(newServer(cfg, user.Generate(3, testTime())).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestServerWithClient(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.RateLimit = 0
	srv := httptest.NewServer(newServer(cfg, user.Generate(31, testTime())).Handler())
	defer srv.Close()

	c, err := client.New(client.DefaultConfig(srv.URL, "userlist-server-test/1.0"))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	defer c.Close()

	f := pagination.NewPagedFetcher[user.User](client.NewSource[user.User](c, cfg.Listing.Resource), pagination.DefaultFetcherConfig())
	ctx := context.Background()
	for f.HasMore() {
		if _, err := f.LoadNextPage(ctx, "-name"); err != nil {
			t.Fatalf("LoadNextPage() error = %v", err)
		}
	}

	if f.Len() != 31 {
		t.Errorf("Len() = %d, want 31", f.Len())
	}
	if f.PageIndex() != 4 {
		t.Errorf("PageIndex() = %d, want 4", f.PageIndex())
	}
}

func testTime() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}
