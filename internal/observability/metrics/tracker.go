package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/flowpulse/flowpulse/internal/observability/errors"
	"github.com/flowpulse/flowpulse/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess     = "success"
	ResultTransient   = "transient"
	ResultFatal       = "fatal"
	ResultCircuitOpen = "circuit_open"
)

// Drop reason constants for stream accounting.
const (
	DropDuplicate  = "duplicate"
	DropSuperseded = "superseded"
)

// PollMetric captures details about one poll cycle for metric emission.
type PollMetric struct {
	Endpoint string
	Kind     string // observed status kind, blank when the poll failed
	Result   string
	Duration time.Duration
	Err      error
}

// EmitPollCycle emits standardised poll lifecycle metrics.
func EmitPollCycle(sink statsd.Sink, in PollMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"endpoint": in.Endpoint,
		"result":   in.Result,
	}
	if in.Kind != "" {
		tags["kind"] = in.Kind
	}

	if in.Err != nil && in.Result != ResultSuccess {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("poll.cycle", 1, tags)

	if in.Duration > 0 {
		sink.Timing("poll.duration", in.Duration, CloneTags(tags))
	}
}

// EmitRetryDelay records the backoff chosen after a failed poll attempt.
func EmitRetryDelay(sink statsd.Sink, endpoint string, attempt int, delay time.Duration) {
	if sink == nil || delay <= 0 {
		return
	}
	sink.Timing("retry.delay", delay, map[string]string{
		"endpoint": endpoint,
		"attempt":  strconv.Itoa(attempt),
	})
}

// EmitBreakerTransition counts circuit breaker state changes.
func EmitBreakerTransition(sink statsd.Sink, endpoint, from, to string) {
	if sink == nil {
		return
	}
	sink.Count("breaker.transition", 1, map[string]string{
		"endpoint": endpoint,
		"from":     from,
		"to":       to,
	})
}

// EmitStreamState counts states delivered to stream consumers.
// Execution IDs are deliberately not tagged to keep cardinality bounded.
func EmitStreamState(sink statsd.Sink, kind string, recovered bool) {
	if sink == nil {
		return
	}
	sink.Count("stream.state", 1, map[string]string{
		"kind":      kind,
		"recovered": strconv.FormatBool(recovered),
	})
}

// EmitStreamDrop counts states withheld from stream consumers.
func EmitStreamDrop(sink statsd.Sink, reason string) {
	if sink == nil {
		return
	}
	sink.Count("stream.dropped", 1, map[string]string{"reason": reason})
}

// EmitActiveExecutions records how many executions the tracker is polling.
func EmitActiveExecutions(sink statsd.Sink, n int) {
	if sink == nil {
		return
	}
	sink.Gauge("tracker.active", float64(n), nil)
}

// CloneTags creates a shallow copy of a tag map, filtering out nothing.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
