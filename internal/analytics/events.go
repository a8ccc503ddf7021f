package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventCacheMiss  EventType = "cache_miss"
	EventZeroResult EventType = "zero_result"
	EventFeed       EventType = "feed"
)

// SearchEvent describes one resolved search request.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Filter    string    `json:"filter"`
	Limit     int       `json:"limit"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Degraded  bool      `json:"degraded,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// FeedEvent describes one recommendation feed construction.
type FeedEvent struct {
	Type       EventType `json:"type"`
	Candidates int       `json:"candidates"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// NewSearchEvent classifies a search outcome.
func NewSearchEvent(query, filter string, limit, returned int, cacheHit, degraded bool, latency time.Duration, requestID string) SearchEvent {
	eventType := EventCacheMiss
	switch {
	case returned == 0:
		eventType = EventZeroResult
	case cacheHit:
		eventType = EventCacheHit
	}
	return SearchEvent{
		Type:      eventType,
		Query:     query,
		Filter:    filter,
		Limit:     limit,
		Returned:  returned,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
		Degraded:  degraded,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
