package nemochat

import (
	"strings"

	"github.com/charmbracelet/log"
)

// Accumulator converts a chunked byte stream into an ordered sequence of
// frames. It never parses a record before its separator has arrived, so
// chunks may be split anywhere, including inside a multi-byte character or
// inside the separator itself.
//
// An Accumulator is not safe for concurrent use; one reader feeds it.
type Accumulator struct {
	decoder *textDecoder
	buf     strings.Builder
	logger  *log.Logger

	terminated bool
	frames     int // frames parsed (including malformed ones)
	skipped    int // malformed frames skipped
	ignored    int // records without the data: prefix
}

// NewAccumulator creates an accumulator. A nil logger uses DefaultLogger.
func NewAccumulator(logger *log.Logger) *Accumulator {
	return &Accumulator{
		decoder: newTextDecoder(),
		logger:  loggerOrDefault(logger),
	}
}

// Write feeds one chunk and returns the frames completed by it, in order.
//
// Frames after a terminal frame (done-sentinel or error) in the same chunk
// are not returned, and once terminated every later call returns nil.
func (a *Accumulator) Write(chunk []byte) []Frame {
	if a.terminated {
		return nil
	}
	a.append(a.decoder.Decode(chunk))
	return a.drain()
}

// Close flushes the decoder at end of stream and returns any frames that
// became complete. A trailing fragment without a separator is discarded.
func (a *Accumulator) Close() []Frame {
	if a.terminated {
		return nil
	}
	a.append(a.decoder.Flush())
	frames := a.drain()

	if rest := a.buf.String(); strings.TrimSpace(rest) != "" {
		a.logger.Debug("discarding unterminated record at end of stream", "bytes", len(rest))
	}
	a.buf.Reset()
	return frames
}

// Terminated returns true once a done-sentinel or error frame was emitted
func (a *Accumulator) Terminated() bool {
	return a.terminated
}

// Stats returns (frames parsed, malformed frames skipped, non-data records ignored).
func (a *Accumulator) Stats() (frames, skipped, ignored int) {
	return a.frames, a.skipped, a.ignored
}

// Pending returns the text buffered while waiting for a separator.
func (a *Accumulator) Pending() string {
	return a.buf.String()
}

func (a *Accumulator) append(text string) {
	if text == "" {
		return
	}
	// CR bytes never appear unescaped inside a JSON payload, so dropping
	// them makes CRLF-delimited streams split exactly like LF ones.
	if strings.IndexByte(text, '\r') >= 0 {
		text = strings.ReplaceAll(text, "\r", "")
	}
	a.buf.WriteString(text)
}

// drain emits every complete record in the buffer and keeps the remainder.
func (a *Accumulator) drain() []Frame {
	data := a.buf.String()
	if !strings.Contains(data, FrameSeparator) {
		return nil
	}

	var frames []Frame
	for !a.terminated {
		idx := strings.Index(data, FrameSeparator)
		if idx < 0 {
			break
		}
		record := data[:idx]
		data = data[idx+len(FrameSeparator):]

		frame, ok := a.parse(record)
		if !ok {
			continue
		}
		frames = append(frames, frame)
		if frame.Terminal || frame.HasError() {
			a.terminated = true
		}
	}

	a.buf.Reset()
	if !a.terminated {
		a.buf.WriteString(data)
	}
	return frames
}

func (a *Accumulator) parse(record string) (Frame, bool) {
	// Leading blank lines (e.g. three newlines in a row) are not a record.
	record = strings.TrimLeft(record, "\n")
	if record == "" {
		return Frame{}, false
	}

	frame, ok, err := ParseFrame(record)
	if !ok {
		a.ignored++
		return Frame{}, false
	}
	a.frames++
	if err != nil {
		a.skipped++
		a.logger.Warn("skipping malformed frame", "err", err)
		return Frame{}, false
	}
	if !frame.HasContent() && !frame.HasError() && !frame.Terminal {
		// Valid JSON without content, e.g. a keep-alive {}
		return Frame{}, false
	}
	return frame, true
}
