package nemochat

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const defaultReadSize = 4096

// ConsumeOption configures Consume.
type ConsumeOption func(*consumeOptions)

type consumeOptions struct {
	logger   *log.Logger
	readSize int
	now      func() time.Time
}

// WithConsumeLogger sets the logger used for malformed frames and lifecycle messages.
func WithConsumeLogger(l *log.Logger) ConsumeOption {
	return func(o *consumeOptions) {
		o.logger = l
	}
}

// WithReadSize sets the size of the buffer handed to each Read call.
func WithReadSize(n int) ConsumeOption {
	return func(o *consumeOptions) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// Consume reads r until a termination condition and appends every content
// delta to sink, synchronously and in order.
//
// Termination:
//   - done-sentinel: StopDone, nil error
//   - end of stream without sentinel: StopEOF, nil error
//   - error frame: StopUpstreamError, *UpstreamError
//   - read failure: StopTransportError, *TransportError
//   - ctx canceled or sink closed: StopCanceled, error matching ErrGenerationCanceled
//
// No read happens after termination. Content appended before a failure is
// kept in the sink and reported in the result. If r is also an io.Closer it
// is closed when ctx is canceled so a blocked Read returns; the caller still
// owns closing it on the normal path.
func Consume(ctx context.Context, r io.Reader, sink ContentSink, opts ...ConsumeOption) (*StreamResult, error) {
	o := consumeOptions{readSize: defaultReadSize, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger := loggerOrDefault(o.logger)

	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	s := &consumer{
		acc:    NewAccumulator(logger),
		sink:   sink,
		now:    o.now,
		result: &StreamResult{StartTime: o.now()},
	}

	buf := make([]byte, o.readSize)
	for {
		if err := ctx.Err(); err != nil {
			return s.cancel(err)
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			if done, err := s.apply(s.acc.Write(buf[:n])); done {
				return s.result, err
			}
		}

		if readErr == io.EOF {
			if done, err := s.apply(s.acc.Close()); done {
				return s.result, err
			}
			s.finish(StopEOF)
			logger.Debug("stream ended without sentinel", "deltas", s.result.Deltas)
			return s.result, nil
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return s.cancel(ctxErr)
			}
			s.finish(StopTransportError)
			logger.Debug("stream read failed", "err", readErr, "deltas", s.result.Deltas)
			return s.result, &TransportError{Op: "read", Err: readErr}
		}
	}
}

// consumer folds frames into the sink and tracks the result.
type consumer struct {
	acc     *Accumulator
	sink    ContentSink
	now     func() time.Time
	content strings.Builder
	result  *StreamResult
}

// apply returns done=true when a frame terminated the stream.
func (s *consumer) apply(frames []Frame) (bool, error) {
	for _, frame := range frames {
		// An error frame wins over any content it carries.
		if frame.HasError() {
			s.result.UpstreamMessage = *frame.Error
			s.finish(StopUpstreamError)
			return true, &UpstreamError{Message: *frame.Error}
		}
		if frame.Terminal {
			s.finish(StopDone)
			return true, nil
		}
		if frame.HasContent() {
			if !s.sink.AppendContent(*frame.Content) {
				s.finish(StopCanceled)
				return true, &CanceledError{Op: "read", Cause: ErrHandleFinalized}
			}
			s.content.WriteString(*frame.Content)
			s.result.Deltas++
			s.result.recordFirstDelta(s.now())
		}
	}
	return false, nil
}

func (s *consumer) cancel(cause error) (*StreamResult, error) {
	s.finish(StopCanceled)
	return s.result, &CanceledError{Op: "read", Cause: cause}
}

func (s *consumer) finish(reason StopReason) {
	frames, skipped, _ := s.acc.Stats()
	s.result.Frames = frames
	s.result.Skipped = skipped
	s.result.Content = s.content.String()
	s.result.finish(reason, s.now())
}
