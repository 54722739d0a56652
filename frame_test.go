package nemochat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name        string
		record      string
		wantOK      bool
		wantContent string
		wantError   string
		wantDone    bool
		wantErr     bool
	}{
		{"content", `data: {"content":"Hello"}`, true, "Hello", "", false, false},
		{"no space after prefix", `data:{"content":"x"}`, true, "x", "", false, false},
		{"extra whitespace", "data:   {\"content\":\" padded \"}  ", true, " padded ", "", false, false},
		{"done sentinel", "data: [DONE]", true, "", "", true, false},
		{"error", `data: {"error":"Rate limit exceeded"}`, true, "", "Rate limit exceeded", false, false},
		{"content and error", `data: {"content":"x","error":"boom"}`, true, "x", "boom", false, false},
		{"empty content is absent", `data: {"content":""}`, true, "", "", false, false},
		{"unknown fields ignored", `data: {"content":"a","usage":{"tokens":3}}`, true, "a", "", false, false},
		{"comment record", ": keep-alive", false, "", "", false, false},
		{"event record", "event: message", false, "", "", false, false},
		{"invalid JSON", "data: {not json", true, "", "", false, true},
		{"empty payload", "data:", true, "", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, ok, err := ParseFrame(tt.record)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedFrame)
				var parseErr *FrameParseError
				require.ErrorAs(t, err, &parseErr)
				assert.NotNil(t, parseErr.Cause())
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantDone, frame.Terminal)
			if tt.wantContent == "" {
				assert.False(t, frame.HasContent())
			} else {
				require.True(t, frame.HasContent())
				assert.Equal(t, tt.wantContent, *frame.Content)
			}
			if tt.wantError == "" {
				assert.False(t, frame.HasError())
			} else {
				require.True(t, frame.HasError())
				assert.Equal(t, tt.wantError, *frame.Error)
			}
		})
	}
}

func TestEncodeFrames(t *testing.T) {
	t.Run("content", func(t *testing.T) {
		encoded := string(EncodeContentFrame("two\n\nlines \"quoted\""))
		require.True(t, strings.HasSuffix(encoded, FrameSeparator))

		record := strings.TrimSuffix(encoded, FrameSeparator)
		assert.NotContains(t, record, FrameSeparator)

		frame, ok, err := ParseFrame(record)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "two\n\nlines \"quoted\"", *frame.Content)
	})

	t.Run("error", func(t *testing.T) {
		frame, ok, err := ParseFrame(strings.TrimSuffix(string(EncodeErrorFrame("boom")), FrameSeparator))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "boom", *frame.Error)
		assert.False(t, frame.HasContent())
	})

	t.Run("done", func(t *testing.T) {
		assert.Equal(t, "data: [DONE]\n\n", string(EncodeDoneFrame()))
	})
}
