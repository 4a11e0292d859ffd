package user

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() []User {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []User{
		{ID: "1", Name: "carol", Email: "c@example.com", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "2", Name: "Alice", Email: "a@example.com", CreatedAt: base},
		{ID: "3", Name: "bob", Email: "b@example.com", CreatedAt: base.Add(time.Hour)},
	}
}

func ids(users []User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

func TestSort(t *testing.T) {
	tests := []struct {
		key  string
		want []string
	}{
		{"", []string{"1", "2", "3"}},
		{"name", []string{"2", "3", "1"}},
		{"-name", []string{"1", "3", "2"}},
		{"email", []string{"2", "3", "1"}},
		{"-email", []string{"1", "3", "2"}},
		{"createdAt", []string{"2", "3", "1"}},
		{"-createdAt", []string{"1", "3", "2"}},
		{"unknown", []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		t.Run("key_"+tt.key, func(t *testing.T) {
			users := fixture()
			assert.Equal(t, tt.want, ids(Sort(users, tt.key)))
			assert.Equal(t, []string{"1", "2", "3"}, ids(users), "input must not be reordered")
		})
	}
}

func TestNextSortKey(t *testing.T) {
	assert.Equal(t, "name", NextSortKey(""))
	assert.Equal(t, "", NextSortKey("-createdAt"))
	assert.Equal(t, "", NextSortKey("bogus"))
	assert.True(t, ValidSortKey("-email"))
	assert.False(t, ValidSortKey("age"))
}

func TestGenerate(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	users := Generate(3, base)
	require.Len(t, users, 3)

	seen := map[string]bool{}
	for i, u := range users {
		_, err := uuid.Parse(u.ID)
		require.NoError(t, err)
		assert.False(t, seen[u.ID])
		seen[u.ID] = true
		assert.True(t, u.CreatedAt.Before(base))
		if i > 0 {
			assert.True(t, users[i-1].CreatedAt.Before(u.CreatedAt))
		}
	}
	assert.Equal(t, "user001@example.com", users[0].Email)
}
