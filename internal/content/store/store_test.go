package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/postgres"
)

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%react%", containsPattern("react"))
	assert.Equal(t, `%100\% \_done\\%`, containsPattern(`100% _done\`))
}

// openTestStore connects to the database named by CS_TEST_POSTGRES and loads
// a small fixture. Tests are skipped when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("CS_TEST_POSTGRES") == "" {
		t.Skip("CS_TEST_POSTGRES not set")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)
	db, err := postgres.New(cfg.Postgres)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS posts`,
		`DROP TABLE IF EXISTS authors`,
		`CREATE TABLE authors (id TEXT PRIMARY KEY, name TEXT NOT NULL, username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE, about TEXT NOT NULL DEFAULT '')`,
		`CREATE TABLE posts (id TEXT PRIMARY KEY, title TEXT NOT NULL, content TEXT NOT NULL,
			author_id TEXT REFERENCES authors(id), tags TEXT[] NOT NULL DEFAULT '{}', genre TEXT NOT NULL DEFAULT '',
			views INTEGER NOT NULL DEFAULT 0, avg_read_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			engagement_score DOUBLE PRECISION NOT NULL DEFAULT 0, created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted BOOLEAN NOT NULL DEFAULT FALSE)`,
		`INSERT INTO authors VALUES ('a1', 'Ada Lovelace', 'ada', 'ada@example.com', 'writes about react')`,
		`INSERT INTO posts (id, title, content, author_id, tags, views) VALUES
			('p1', 'React', 'hooks in depth', 'a1', '{react,frontend}', 120),
			('p2', 'Go channels', 'select and 100% of goroutines', 'a1', '{golang}', 5),
			('p3', 'Old react', 'gone', 'a1', '{react}', 1)`,
		`UPDATE posts SET deleted = TRUE WHERE id = 'p3'`,
	} {
		_, err := db.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return New(db, config.SearchConfig{UpstreamTimeout: 2 * time.Second}, nil)
}

func TestStoreLookups(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	posts, err := s.PostsByTitle(ctx, "react", 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "Ada Lovelace", posts[0].AuthorName)
	assert.Equal(t, []string{"react", "frontend"}, posts[0].Tags)

	posts, err = s.PostsByContent(ctx, "100%", 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p2", posts[0].ID)

	posts, err = s.PostsByTag(ctx, "REACT", 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	all, err := s.ListPosts(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	author, err := s.AuthorByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.NotNil(t, author)
	assert.Equal(t, "ada", author.Username)

	missing, err := s.AuthorByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	authors, err := s.ListAuthors(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, authors, 1)
}
