package protocol

import "strings"

// DefaultMaxLine is the default limit of an assembled line.
const DefaultMaxLine = 512

// FindFrames extracts every complete frame span from text, left to right.
// When several headers precede a footer, the span starts at the last one.
func FindFrames(text string) []string {
	var frames []string
	for {
		end := strings.Index(text, Footer)
		if end < 0 {
			return frames
		}
		if start := strings.LastIndex(text[:end], Header); start >= 0 {
			frames = append(frames, text[start:end+len(Footer)])
		}
		text = text[end+len(Footer):]
	}
}

// LineAssembler collects bytes into lines terminated by CR or LF.
type LineAssembler struct {
	// MaxLine limits the length of a line, the partial line is discarded
	// when exceeded.
	MaxLine int

	buf        []byte
	overflowed bool
}

// Feed consumes one byte and returns a completed non-empty line.
func (a *LineAssembler) Feed(b byte) (string, bool) {
	if b == '\r' || b == '\n' {
		overflowed := a.overflowed
		a.overflowed = false
		if len(a.buf) == 0 || overflowed {
			a.buf = a.buf[:0]
			return "", false
		}
		line := string(a.buf)
		a.buf = a.buf[:0]
		return line, true
	}
	limit := a.MaxLine
	if limit <= 0 {
		limit = DefaultMaxLine
	}
	if len(a.buf) >= limit {
		a.buf = a.buf[:0]
		a.overflowed = true
	}
	if !a.overflowed {
		a.buf = append(a.buf, b)
	}
	return "", false
}

// Reset drops the partial line.
func (a *LineAssembler) Reset() {
	a.buf = a.buf[:0]
	a.overflowed = false
}
