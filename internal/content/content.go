// Package content defines the entity records the search and feed layers read
// and the Source interface through which they reach the external data store.
// Records are owned by the CRUD layer; nothing here mutates them.
package content

import (
	"context"
	"time"
)

// Post is a published article as returned by the data store.
type Post struct {
	ID                     string    `json:"id"`
	Title                  string    `json:"title"`
	Content                string    `json:"content"`
	AuthorID               string    `json:"author_id"`
	AuthorName             string    `json:"author_name"`
	Tags                   []string  `json:"tags"`
	Genre                  string    `json:"genre"`
	Views                  int       `json:"views"`
	AverageReadTimeSeconds float64   `json:"average_read_time_seconds"`
	EngagementScore        float64   `json:"engagement_score"`
	CreatedAt              time.Time `json:"created_at"`
	Deleted                bool      `json:"deleted,omitempty"`
}

// Author is a user profile that owns posts.
type Author struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	About    string `json:"about"`
}

// TagUsage is a tag aggregated across posts; Count is the number of posts
// carrying it.
type TagUsage struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Source is the query surface of the external data store. Author lookups
// return (nil, nil) when no author matches.
type Source interface {
	PostsByTitle(ctx context.Context, title string, limit int) ([]Post, error)
	PostsByContent(ctx context.Context, term string, limit int) ([]Post, error)
	PostsByTag(ctx context.Context, tag string, limit int) ([]Post, error)
	AuthorByEmail(ctx context.Context, email string) (*Author, error)
	AuthorByUsername(ctx context.Context, username string) (*Author, error)
	ListPosts(ctx context.Context, limit int) ([]Post, error)
	ListAuthors(ctx context.Context, limit int) ([]Author, error)
}
