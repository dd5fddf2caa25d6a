// Package chunker splits long turns into overlapping pieces for embedding.
package chunker

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 800
	DefaultOverlap    = 100
	DefaultMaxSize    = 200_000
)

var (
	// ErrInvalidOptions is returned for a non-positive target size or an
	// overlap outside [0, TargetSize).
	ErrInvalidOptions = errors.New("chunker: invalid options")
	// ErrTextTooLarge is returned when the input exceeds Options.MaxSize.
	ErrTextTooLarge = errors.New("chunker: text exceeds max size")
)

// Options configures chunking behavior. Sizes are in bytes.
type Options struct {
	TargetSize int
	Overlap    int
	MaxSize    int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		Overlap:    DefaultOverlap,
		MaxSize:    DefaultMaxSize,
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.TargetSize <= 0 || o.Overlap < 0 || o.Overlap >= o.TargetSize || o.MaxSize < 0 {
		return ErrInvalidOptions
	}
	return nil
}

// Piece is a chunk with its byte offset in the original text.
type Piece struct {
	Seq    int
	Offset int
	Text   string
}

// span is a half-open byte range into the original text.
type span struct {
	start, end int
}

// Split breaks text into pieces of roughly opts.TargetSize bytes. Text that
// already fits returns a single piece. The result depends only on the input.
func Split(text string, opts Options) ([]Piece, error) {
	if opts == (Options{}) {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxSize > 0 && len(text) > opts.MaxSize {
		return nil, ErrTextTooLarge
	}

	whole := trimSpan(text, span{0, len(text)})
	if whole.start >= whole.end {
		return nil, nil
	}

	// Short content, no chunking needed
	if whole.end-whole.start <= opts.TargetSize {
		return []Piece{{Seq: 0, Offset: whole.start, Text: text[whole.start:whole.end]}}, nil
	}

	spans := mergeBlocks(text, splitBlocks(text), opts)
	return withOverlap(text, spans, opts), nil
}

// splitBlocks splits text on blank lines and before heading lines.
func splitBlocks(text string) []span {
	var blocks []span
	start := 0
	pos := 0
	flush := func(end int) {
		s := trimSpan(text, span{start, end})
		if s.start < s.end {
			blocks = append(blocks, s)
		}
	}

	for pos < len(text) {
		nl := strings.IndexByte(text[pos:], '\n')
		lineEnd := len(text)
		if nl >= 0 {
			lineEnd = pos + nl
		}
		line := strings.TrimSpace(text[pos:lineEnd])

		switch {
		case line == "":
			flush(pos)
			start = lineEnd
		case strings.HasPrefix(line, "#") && pos > start:
			flush(pos)
			start = pos
		}

		if nl < 0 {
			break
		}
		pos = lineEnd + 1
	}
	flush(len(text))
	return blocks
}

// mergeBlocks combines small blocks and hard-splits oversized ones.
func mergeBlocks(text string, blocks []span, opts Options) []span {
	var out []span
	var accum span
	empty := true

	flushAccum := func() {
		if empty {
			return
		}
		if accum.end-accum.start > opts.TargetSize {
			out = append(out, hardSplit(text, accum, opts.TargetSize)...)
		} else {
			out = append(out, accum)
		}
		empty = true
	}

	for _, b := range blocks {
		if empty {
			accum, empty = b, false
			continue
		}
		if b.end-accum.start <= opts.TargetSize {
			accum.end = b.end
			continue
		}
		flushAccum()
		accum, empty = b, false
	}
	flushAccum()
	return out
}

// hardSplit breaks a span that exceeds target on sentence, line, or word
// boundaries, falling back to a rune-safe cut.
func hardSplit(text string, s span, target int) []span {
	var out []span
	cursor := s.start
	for s.end-cursor > target {
		limit := cursor + target
		cut := breakPoint(text[cursor:limit])
		if cut <= 0 {
			cut = target
			for cut > 0 && !utf8.RuneStart(text[cursor+cut]) {
				cut--
			}
			if cut == 0 {
				cut = target
			}
		}
		piece := trimSpan(text, span{cursor, cursor + cut})
		if piece.start < piece.end {
			out = append(out, piece)
		}
		cursor += cut
		for cursor < s.end && isSpaceByte(text[cursor]) {
			cursor++
		}
	}
	if rest := trimSpan(text, span{cursor, s.end}); rest.start < rest.end {
		out = append(out, rest)
	}
	return out
}

// breakPoint returns the length of the best prefix of window to cut at, or 0.
// Sentence ends in the back half win over newlines, which win over spaces.
func breakPoint(window string) int {
	half := len(window) / 2
	best := 0
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, sep); i >= half && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	if best > 0 {
		return best
	}
	if i := strings.LastIndexByte(window, ' '); i > 0 {
		return i + 1
	}
	return 0
}

// withOverlap turns spans into pieces, prefixing each piece after the first
// with up to opts.Overlap bytes of the previous piece's tail.
func withOverlap(text string, spans []span, opts Options) []Piece {
	pieces := make([]Piece, 0, len(spans))
	for i, s := range spans {
		start := s.start
		if i > 0 && opts.Overlap > 0 {
			prev := spans[i-1]
			o := prev.end - opts.Overlap
			if o < prev.start {
				o = prev.start
			}
			// Start the overlap on a word boundary.
			for o < prev.end && o > prev.start && !isSpaceByte(text[o-1]) {
				o++
			}
			if o < start {
				start = o
			}
		}
		t := trimSpan(text, span{start, s.end})
		if t.start >= t.end {
			continue
		}
		pieces = append(pieces, Piece{Seq: len(pieces), Offset: t.start, Text: text[t.start:t.end]})
	}
	return pieces
}

func trimSpan(text string, s span) span {
	for s.start < s.end {
		r, size := utf8.DecodeRuneInString(text[s.start:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.start += size
	}
	for s.end > s.start {
		r, size := utf8.DecodeLastRuneInString(text[s.start:s.end])
		if !unicode.IsSpace(r) {
			break
		}
		s.end -= size
	}
	return s
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
