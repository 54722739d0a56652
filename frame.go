package nemochat

import (
	"encoding/json"
	"strings"
)

// Wire format constants for the streamed response.
const (
	// FramePrefix starts every data record.
	FramePrefix = "data:"

	// FrameSeparator ends every record (a blank line).
	FrameSeparator = "\n\n"

	// DoneSentinel is the payload signalling normal end of stream.
	DoneSentinel = "[DONE]"
)

// framePayload is the JSON shape of a frame: {content?, error?}.
type framePayload struct {
	Content *string `json:"content,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// ParseFrame parses one complete record (without its trailing separator).
//
// Returns ok=false for records that do not start with the data: prefix; those
// are ignored, not errors. A payload that is neither the done-sentinel nor
// valid JSON yields a *FrameParseError.
//
// Empty content or error strings are treated as absent.
func ParseFrame(record string) (frame Frame, ok bool, err error) {
	if !strings.HasPrefix(record, FramePrefix) {
		return Frame{}, false, nil
	}

	payload := strings.TrimSpace(record[len(FramePrefix):])
	if payload == DoneSentinel {
		return Frame{Terminal: true}, true, nil
	}

	var p framePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return Frame{}, true, &FrameParseError{Payload: payload, Err: err}
	}

	if p.Content != nil && *p.Content != "" {
		frame.Content = p.Content
	}
	if p.Error != nil && *p.Error != "" {
		frame.Error = p.Error
	}
	return frame, true, nil
}

// EncodeContentFrame returns a complete record carrying a content delta,
// separator included.
func EncodeContentFrame(content string) []byte {
	return encodeFrame(framePayload{Content: &content})
}

// EncodeErrorFrame returns a complete record carrying an upstream error.
func EncodeErrorFrame(message string) []byte {
	return encodeFrame(framePayload{Error: &message})
}

// EncodeDoneFrame returns the done-sentinel record.
func EncodeDoneFrame() []byte {
	return []byte(FramePrefix + " " + DoneSentinel + FrameSeparator)
}

func encodeFrame(p framePayload) []byte {
	// Marshalling a struct of string pointers cannot fail.
	data, _ := json.Marshal(p)
	out := make([]byte, 0, len(FramePrefix)+1+len(data)+len(FrameSeparator))
	out = append(out, FramePrefix+" "...)
	out = append(out, data...)
	out = append(out, FrameSeparator...)
	return out
}
