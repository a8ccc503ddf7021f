package analytics

// Sink receives events for publication; *collector.BatchCollector
// satisfies it.
type Sink interface {
	Track(key string, value any)
}

// Collector is the entry point handlers report to. Events are recorded in
// the local aggregator unless the aggregator is fed from the shared topic,
// and are forwarded to the sink when one is configured.
type Collector struct {
	aggregator  *Aggregator
	sink        Sink
	recordLocal bool
}

// NewCollector creates a Collector. With a nil sink events are only
// aggregated locally. recordLocal should be false when agg also consumes the
// topic sink publishes to, so events are not counted twice.
func NewCollector(agg *Aggregator, sink Sink, recordLocal bool) *Collector {
	return &Collector{
		aggregator:  agg,
		sink:        sink,
		recordLocal: recordLocal || sink == nil,
	}
}

func (c *Collector) TrackSearch(event SearchEvent) {
	if c == nil {
		return
	}
	if c.recordLocal && c.aggregator != nil {
		c.aggregator.RecordSearch(event)
	}
	if c.sink != nil {
		c.sink.Track(event.Filter, event)
	}
}

func (c *Collector) TrackFeed(event FeedEvent) {
	if c == nil {
		return
	}
	if c.recordLocal && c.aggregator != nil {
		c.aggregator.RecordFeed(event)
	}
	if c.sink != nil {
		c.sink.Track(string(EventFeed), event)
	}
}
