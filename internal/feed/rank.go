package feed

import (
	"container/heap"
	"time"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/content"
)

// Scored is a ranked feed entry.
type Scored struct {
	Post      content.Post `json:"post"`
	Score     float64      `json:"score"`
	Breakdown Breakdown    `json:"breakdown"`
}

// Rank scores every non-deleted candidate and returns the topN best, highest
// first. Equal scores fall back to post ID so the order is deterministic.
func Rank(candidates []content.Post, profile ViewerProfile, topN int, now time.Time) []Scored {
	if topN <= 0 {
		topN = DefaultTopN
	}
	h := &scoredHeap{}
	heap.Init(h)
	for _, p := range candidates {
		if p.Deleted {
			continue
		}
		b := Explain(p, profile, now)
		heap.Push(h, Scored{Post: p, Score: b.Total, Breakdown: b})
		if h.Len() > topN {
			heap.Pop(h)
		}
	}
	out := make([]Scored, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Scored)
	}
	return out
}

// scoredHeap is a min-heap on score, so the weakest entry is evicted first.
type scoredHeap []Scored

func (h scoredHeap) Len() int { return len(h) }

func (h scoredHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Post.ID > h[j].Post.ID
}

func (h scoredHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredHeap) Push(x any) {
	*h = append(*h, x.(Scored))
}

func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
