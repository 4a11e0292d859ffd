package server

import (
	"fmt"
	"os"
	"sync"

	"github.com/Sternrassler/userlist/internal/user"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML layout of a user fixture file.
type Fixture struct {
	Users []user.User `yaml:"users"`
}

// LoadFixture reads users from a YAML fixture file.
func LoadFixture(path string) ([]user.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}

	for i, u := range fixture.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("fixture %s: user %d has no id", path, i)
		}
	}

	return fixture.Users, nil
}

// Store holds the served users. Every change bumps the version that ETags are
// derived from.
type Store struct {
	mu      sync.RWMutex
	users   []user.User
	version int
}

// NewStore creates a store serving users in insertion order.
func NewStore(users []user.User) *Store {
	return &Store{users: users}
}

// Replace swaps the served users.
func (s *Store) Replace(users []user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = users
	s.version++
}

// Len returns the number of users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Page returns one page of users sorted by sortKey, the total count and the
// store version the page was cut from.
func (s *Store) Page(page, size int, sortKey string) ([]user.User, int, int) {
	s.mu.RLock()
	users := user.Sort(s.users, sortKey)
	version := s.version
	s.mu.RUnlock()

	start := min(page*size, len(users))
	end := min(start+size, len(users))

	items := make([]user.User, end-start)
	copy(items, users[start:end])
	return items, len(users), version
}
