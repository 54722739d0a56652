package nemochat

import (
	"time"
)

// StopReason records which termination condition ended a stream.
// Exactly one applies per stream.
type StopReason string

// Stop reasons
const (
	StopDone           StopReason = "done"            // done-sentinel received
	StopEOF            StopReason = "eof"             // stream closed without a sentinel
	StopUpstreamError  StopReason = "upstream_error"  // relay sent an error frame
	StopTransportError StopReason = "transport_error" // read failed mid-stream
	StopCanceled       StopReason = "canceled"        // generation aborted by the caller
)

// IsNormal returns true for the two normal completions (sentinel or EOF)
func (r StopReason) IsNormal() bool {
	return r == StopDone || r == StopEOF
}

// ContentSink receives content deltas in stream order.
// AppendContent returns false once the sink no longer accepts content
// (for example after its message was finalized elsewhere).
type ContentSink interface {
	AppendContent(text string) bool
}

// StreamResult describes a finished stream. The accumulated content is kept
// whatever the stop reason.
type StreamResult struct {
	// StopReason indicates which termination condition occurred
	StopReason StopReason

	// Content is everything appended to the sink during this stream
	Content string

	// Deltas is the number of content deltas applied
	Deltas int

	// Frames is the number of data records parsed, malformed ones included
	Frames int

	// Skipped is the number of malformed frames that were ignored
	Skipped int

	// UpstreamMessage is the relay's error text when StopReason is StopUpstreamError
	UpstreamMessage string

	// Timing
	StartTime      time.Time
	FirstDeltaTime time.Time
	EndTime        time.Time

	// Derived metrics (computed when the stream ends)
	TTFT          time.Duration // Time to first delta
	TotalDuration time.Duration
}

func (r *StreamResult) recordFirstDelta(now time.Time) {
	if r.FirstDeltaTime.IsZero() {
		r.FirstDeltaTime = now
		r.TTFT = now.Sub(r.StartTime)
	}
}

func (r *StreamResult) finish(reason StopReason, now time.Time) {
	r.StopReason = reason
	r.EndTime = now
	r.TotalDuration = now.Sub(r.StartTime)
}
