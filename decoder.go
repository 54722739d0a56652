package nemochat

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textDecoder turns byte chunks into text without assuming chunk boundaries
// line up with character boundaries. An incomplete UTF-8 sequence at the end
// of a chunk is held back until the next chunk completes it.
type textDecoder struct {
	t       transform.Transformer
	pending []byte
	dst     []byte
}

func newTextDecoder() *textDecoder {
	// UTF8BOM strips a leading byte order mark and replaces ill-formed
	// sequences with U+FFFD.
	return &textDecoder{t: unicode.UTF8BOM.NewDecoder()}
}

// Decode converts chunk to text. Bytes of a trailing partial sequence are
// retained and prepended to the next call.
func (d *textDecoder) Decode(chunk []byte) string {
	return d.transform(chunk, false)
}

// Flush decodes whatever is still pending as the final input. A dangling
// partial sequence comes out as U+FFFD.
func (d *textDecoder) Flush() string {
	out := d.transform(nil, true)
	d.t.Reset()
	return out
}

func (d *textDecoder) transform(chunk []byte, atEOF bool) string {
	var src []byte
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	} else {
		src = chunk
	}
	if len(src) == 0 && !atEOF {
		return ""
	}

	// Every ill-formed byte may expand to a 3-byte replacement character.
	if need := 3*len(src) + utf8.UTFMax; cap(d.dst) < need {
		d.dst = make([]byte, need)
	}
	dst := d.dst[:cap(d.dst)]

	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			return string(out)
		case transform.ErrShortSrc:
			d.pending = append([]byte(nil), src...)
			return string(out)
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				dst = make([]byte, 2*len(dst))
				d.dst = dst
			}
		default:
			// The UTF-8 decoder replaces rather than fails; anything else
			// is dropped.
			return string(out)
		}
	}
}
