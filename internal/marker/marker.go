// Package marker implements stream-safe suppression of an in-band control
// marker. Voice responses are streamed in arbitrary fragments, so the
// marker literal can arrive split across chunk boundaries; the buffer
// withholds exactly as much text as needed to decide whether a marker is
// forming, and strips it once complete.
package marker

import "strings"

// Buffer processes one streamed response. Create a fresh Buffer per
// response; Found is sticky for the lifetime of the instance.
type Buffer struct {
	marker string
	buf    strings.Builder
	found  bool
}

// New returns a Buffer that suppresses occurrences of marker.
func New(marker string) *Buffer {
	return &Buffer{marker: marker}
}

// Push appends a fragment and returns any text that is safe to emit.
// Safe means the held text cannot be a partially received marker: a
// complete marker is removed (all occurrences) before emitting, and a
// buffer whose tail is a proper prefix of the marker is withheld until
// later fragments resolve it.
func (b *Buffer) Push(fragment string) string {
	b.buf.WriteString(fragment)
	s := b.buf.String()

	if strings.Contains(s, b.marker) {
		b.found = true
		b.buf.Reset()
		s = strings.ReplaceAll(s, b.marker, "")
		// A second marker may already be forming after the first.
		if b.endsWithPartialMarker(s) {
			b.buf.WriteString(s)
			return ""
		}
		return s
	}

	if b.endsWithPartialMarker(s) {
		return ""
	}

	b.buf.Reset()
	return s
}

// Flush returns whatever is still held, verbatim. A dangling partial
// prefix at stream end was not a marker, so it belongs to the text.
func (b *Buffer) Flush() string {
	s := b.buf.String()
	b.buf.Reset()
	return s
}

// Found reports whether a complete marker was seen on this response.
func (b *Buffer) Found() bool {
	return b.found
}

// endsWithPartialMarker reports whether the tail of s is a proper
// non-empty prefix of the marker.
func (b *Buffer) endsWithPartialMarker(s string) bool {
	for i := 1; i < len(b.marker); i++ {
		if strings.HasSuffix(s, b.marker[:i]) {
			return true
		}
	}
	return false
}
