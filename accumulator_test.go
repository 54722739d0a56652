package nemochat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// describe renders frames as strings so sequences compare easily.
func describe(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		switch {
		case f.HasError():
			out = append(out, "error:"+*f.Error)
		case f.Terminal:
			out = append(out, "[DONE]")
		case f.HasContent():
			out = append(out, *f.Content)
		}
	}
	return out
}

// feed writes every chunk and then closes the accumulator.
func feed(acc *Accumulator, chunks ...[]byte) []Frame {
	var frames []Frame
	for _, c := range chunks {
		frames = append(frames, acc.Write(c)...)
	}
	return append(frames, acc.Close()...)
}

func TestAccumulator_SingleChunk(t *testing.T) {
	stream := "data: {\"content\":\"Hel\"}\n\ndata: {\"content\":\"lo\"}\n\ndata: [DONE]\n\n"

	acc := NewAccumulator(nil)
	frames := acc.Write([]byte(stream))

	assert.Equal(t, []string{"Hel", "lo", "[DONE]"}, describe(frames))
	assert.True(t, acc.Terminated())
	assert.Empty(t, acc.Pending())
}

func TestAccumulator_EverySplitPoint(t *testing.T) {
	stream := []byte("data: {\"content\":\"Hé\"}\n\n" +
		"data: {\"content\":\"llo 世界\"}\n\n" +
		": keep-alive\n\n" +
		"data: {\"content\":\" 🎉\"}\n\n" +
		"data: [DONE]\n\n")
	want := []string{"Hé", "llo 世界", " 🎉", "[DONE]"}

	for i := 0; i <= len(stream); i++ {
		acc := NewAccumulator(nil)
		got := describe(feed(acc, stream[:i], stream[i:]))
		require.Equal(t, want, got, "split at byte %d", i)
	}
}

func TestAccumulator_EveryThreeWaySplit(t *testing.T) {
	stream := []byte("data: {\"content\":\"日本\"}\n\ndata: {\"content\":\"語\"}\n\n")
	want := []string{"日本", "語"}

	for i := 0; i <= len(stream); i++ {
		for j := i; j <= len(stream); j++ {
			acc := NewAccumulator(nil)
			got := describe(feed(acc, stream[:i], stream[i:j], stream[j:]))
			require.Equal(t, want, got, "split at bytes %d and %d", i, j)
		}
	}
}

func TestAccumulator_OneByteAtATime(t *testing.T) {
	text := "naïve café, 你好, мир 👋🏽"
	stream := wire(EncodeContentFrame(text), EncodeDoneFrame())

	acc := NewAccumulator(nil)
	var frames []Frame
	for _, b := range stream {
		frames = append(frames, acc.Write([]byte{b})...)
	}

	require.Equal(t, []string{text, "[DONE]"}, describe(frames))
}

func TestAccumulator_SeparatorSplitAcrossChunks(t *testing.T) {
	acc := NewAccumulator(nil)

	assert.Empty(t, acc.Write([]byte("data: {\"content\":\"a\"}\n")))
	assert.Equal(t, "data: {\"content\":\"a\"}\n", acc.Pending())

	frames := acc.Write([]byte("\ndata: {\"content\":\"b\"}\n\n"))
	assert.Equal(t, []string{"a", "b"}, describe(frames))
}

func TestAccumulator_CRLF(t *testing.T) {
	stream := "data: {\"content\":\"a\"}\r\n\r\ndata: {\"content\":\"b\"}\r\n\r\ndata: [DONE]\r\n\r\n"

	acc := NewAccumulator(nil)
	frames := feed(acc, []byte(stream[:21]), []byte(stream[21:]))

	assert.Equal(t, []string{"a", "b", "[DONE]"}, describe(frames))
}

func TestAccumulator_ExtraBlankLines(t *testing.T) {
	stream := "data: {\"content\":\"a\"}\n\n\n\ndata: {\"content\":\"b\"}\n\n"

	frames := feed(NewAccumulator(nil), []byte(stream))

	assert.Equal(t, []string{"a", "b"}, describe(frames))
}

func TestAccumulator_SkipsMalformedFrames(t *testing.T) {
	stream := "data: {\"content\":\"a\"}\n\n" +
		"data: {\"content\": oops\n\n" +
		"data: {\"content\":\"b\"}\n\n"

	acc := NewAccumulator(nil)
	frames := feed(acc, []byte(stream))

	assert.Equal(t, []string{"a", "b"}, describe(frames))
	parsed, skipped, ignored := acc.Stats()
	assert.Equal(t, 3, parsed)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 0, ignored)
}

func TestAccumulator_IgnoresNonDataRecords(t *testing.T) {
	stream := ": keep-alive\n\nevent: ping\n\ndata: {\"content\":\"a\"}\n\nid: 7\n\n"

	acc := NewAccumulator(nil)
	frames := feed(acc, []byte(stream))

	assert.Equal(t, []string{"a"}, describe(frames))
	_, _, ignored := acc.Stats()
	assert.Equal(t, 3, ignored)
}

func TestAccumulator_DropsEmptyFrames(t *testing.T) {
	stream := "data: {}\n\ndata: {\"content\":\"\"}\n\ndata: {\"content\":\"a\"}\n\n"

	frames := feed(NewAccumulator(nil), []byte(stream))

	assert.Equal(t, []string{"a"}, describe(frames))
}

func TestAccumulator_StopsAtDone(t *testing.T) {
	stream := "data: {\"content\":\"a\"}\n\ndata: [DONE]\n\ndata: {\"content\":\"late\"}\n\n"

	acc := NewAccumulator(nil)
	frames := acc.Write([]byte(stream))

	assert.Equal(t, []string{"a", "[DONE]"}, describe(frames))
	assert.Nil(t, acc.Write([]byte("data: {\"content\":\"later\"}\n\n")))
	assert.Nil(t, acc.Close())
}

func TestAccumulator_StopsAtError(t *testing.T) {
	stream := "data: {\"content\":\"a\"}\n\ndata: {\"error\":\"quota exceeded\"}\n\ndata: {\"content\":\"b\"}\n\n"

	acc := NewAccumulator(nil)
	frames := acc.Write([]byte(stream))

	assert.Equal(t, []string{"a", "error:quota exceeded"}, describe(frames))
	assert.True(t, acc.Terminated())
}

func TestAccumulator_DiscardsUnterminatedTail(t *testing.T) {
	acc := NewAccumulator(nil)

	frames := acc.Write([]byte("data: {\"content\":\"a\"}\n\ndata: {\"content\":\"cut"))
	assert.Equal(t, []string{"a"}, describe(frames))
	assert.True(t, strings.HasPrefix(acc.Pending(), "data:"))

	assert.Empty(t, acc.Close())
	assert.Empty(t, acc.Pending())
}

func TestAccumulator_EscapedSeparatorInsideContent(t *testing.T) {
	stream := wire(EncodeContentFrame("line one\n\nline two"))

	frames := feed(NewAccumulator(nil), splitEvery(stream, 5)...)

	assert.Equal(t, []string{"line one\n\nline two"}, describe(frames))
}

func TestAccumulator_ByteOrderMark(t *testing.T) {
	stream := append([]byte("\xEF\xBB\xBF"), EncodeContentFrame("a")...)

	frames := feed(NewAccumulator(nil), splitEvery(stream, 1)...)

	assert.Equal(t, []string{"a"}, describe(frames))
}
