// Package contenttest provides an in-memory content.Source with per-method
// call counters and error injection for tests.
package contenttest

import (
	"context"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
)

// Method names used as keys for Fail and Calls.
const (
	MethodPostsByTitle     = "PostsByTitle"
	MethodPostsByContent   = "PostsByContent"
	MethodPostsByTag       = "PostsByTag"
	MethodAuthorByEmail    = "AuthorByEmail"
	MethodAuthorByUsername = "AuthorByUsername"
	MethodListPosts        = "ListPosts"
	MethodListAuthors      = "ListAuthors"
)

// Source mimics the Postgres store's matching rules over fixed records.
type Source struct {
	Posts   []content.Post
	Authors []content.Author

	mu    sync.Mutex
	fail  map[string]error
	calls map[string]int
	gate  chan struct{}
}

var _ content.Source = (*Source)(nil)

// Fail makes method return err until cleared with a nil err.
func (s *Source) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail == nil {
		s.fail = make(map[string]error)
	}
	if err == nil {
		delete(s.fail, method)
		return
	}
	s.fail[method] = err
}

// Block makes every call wait until the returned release func is called.
func (s *Source) Block() (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gate = gate
	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

// Calls returns how many times method was invoked.
func (s *Source) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (s *Source) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Source) enter(ctx context.Context, method string) error {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[method]++
	err := s.fail[method]
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *Source) PostsByTitle(ctx context.Context, title string, limit int) ([]content.Post, error) {
	if err := s.enter(ctx, MethodPostsByTitle); err != nil {
		return nil, err
	}
	return s.filterPosts(limit, func(p content.Post) bool {
		return strings.EqualFold(p.Title, title)
	}), nil
}

func (s *Source) PostsByContent(ctx context.Context, term string, limit int) ([]content.Post, error) {
	if err := s.enter(ctx, MethodPostsByContent); err != nil {
		return nil, err
	}
	term = strings.ToLower(term)
	return s.filterPosts(limit, func(p content.Post) bool {
		return strings.Contains(strings.ToLower(p.Content), term)
	}), nil
}

func (s *Source) PostsByTag(ctx context.Context, tag string, limit int) ([]content.Post, error) {
	if err := s.enter(ctx, MethodPostsByTag); err != nil {
		return nil, err
	}
	tag = strings.ToLower(tag)
	return s.filterPosts(limit, func(p content.Post) bool {
		for _, t := range p.Tags {
			if t == tag {
				return true
			}
		}
		return false
	}), nil
}

func (s *Source) ListPosts(ctx context.Context, limit int) ([]content.Post, error) {
	if err := s.enter(ctx, MethodListPosts); err != nil {
		return nil, err
	}
	return s.filterPosts(limit, func(content.Post) bool { return true }), nil
}

func (s *Source) AuthorByEmail(ctx context.Context, email string) (*content.Author, error) {
	if err := s.enter(ctx, MethodAuthorByEmail); err != nil {
		return nil, err
	}
	return s.findAuthor(func(a content.Author) bool { return strings.EqualFold(a.Email, email) }), nil
}

func (s *Source) AuthorByUsername(ctx context.Context, username string) (*content.Author, error) {
	if err := s.enter(ctx, MethodAuthorByUsername); err != nil {
		return nil, err
	}
	return s.findAuthor(func(a content.Author) bool { return strings.EqualFold(a.Username, username) }), nil
}

func (s *Source) ListAuthors(ctx context.Context, limit int) ([]content.Author, error) {
	if err := s.enter(ctx, MethodListAuthors); err != nil {
		return nil, err
	}
	out := make([]content.Author, 0, len(s.Authors))
	for _, a := range s.Authors {
		if len(out) == limit {
			break
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Source) filterPosts(limit int, keep func(content.Post) bool) []content.Post {
	var out []content.Post
	for _, p := range s.Posts {
		if p.Deleted || !keep(p) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, p)
	}
	return out
}

func (s *Source) findAuthor(match func(content.Author) bool) *content.Author {
	for _, a := range s.Authors {
		if match(a) {
			found := a
			return &found
		}
	}
	return nil
}
