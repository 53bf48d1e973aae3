package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultSize    = 512
	DefaultOverlap = 64
)

var (
	headingPattern  = regexp.MustCompile(`^#{1,6}\s+`)
	sentencePattern = regexp.MustCompile(`[.!?]+\s+`)
)

// Chunk is a trimmed slice of a document. Start and End are byte offsets of
// the untrimmed span in the source text.
type Chunk struct {
	Content string
	Start   int
	End     int
}

type Options struct {
	Size    int
	Overlap int
}

type Chunker struct {
	size    int
	overlap int
}

func New(opt Options) *Chunker {
	if opt.Size <= 0 {
		opt.Size = DefaultSize
	}
	if opt.Overlap < 0 {
		opt.Overlap = 0
	}
	if opt.Overlap >= opt.Size {
		opt.Overlap = opt.Size / 4
	}
	return &Chunker{size: opt.Size, overlap: opt.Overlap}
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text along headings, keeping fenced code blocks whole. Text
// without any heading split is chunked by sentences with a trailing overlap.
func (c *Chunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	chunks, split := c.sections(text)
	if split {
		return chunks
	}
	return c.sentences(text)
}

type span struct {
	start, end int
}

func (c *Chunker) sections(text string) ([]Chunk, bool) {
	var (
		spans      []span
		start, pos int
		inFence    bool
		split      bool
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		bare := strings.TrimRight(line, "\r\n")
		switch {
		case strings.HasPrefix(strings.TrimSpace(bare), "```"):
			inFence = !inFence
		case !inFence && headingPattern.MatchString(bare) && pos > start:
			if strings.TrimSpace(text[start:pos]) != "" {
				split = true
			}
			spans = append(spans, span{start, pos})
			start = pos
		}
		pos += len(line)
		if !inFence && pos-start > c.size {
			spans = append(spans, span{start, pos})
			start = pos
		}
	}
	if start < pos {
		spans = append(spans, span{start, pos})
	}
	return fold(text, spans), split
}

// fold drops whitespace-only spans by merging them into a neighbour, so the
// emitted spans still cover the whole text.
func fold(text string, spans []span) []Chunk {
	var out []Chunk
	pending := -1
	for _, s := range spans {
		content := strings.TrimSpace(text[s.start:s.end])
		if content == "" {
			if pending < 0 {
				pending = s.start
			}
			continue
		}
		start := s.start
		if pending >= 0 {
			start = pending
			pending = -1
		}
		out = append(out, Chunk{Content: content, Start: start, End: s.end})
	}
	if pending >= 0 && len(out) > 0 {
		out[len(out)-1].End = len(text)
	}
	return out
}

type sentence struct {
	text       string
	start, end int
}

func splitSentences(text string) []sentence {
	var out []sentence
	add := func(s, e int) {
		seg := text[s:e]
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			return
		}
		lead := len(seg) - len(strings.TrimLeftFunc(seg, unicode.IsSpace))
		out = append(out, sentence{text: trimmed, start: s + lead, end: s + lead + len(trimmed)})
	}
	prev := 0
	for _, m := range sentencePattern.FindAllStringIndex(text, -1) {
		end := m[0] + len(strings.TrimRightFunc(text[m[0]:m[1]], unicode.IsSpace))
		add(prev, end)
		prev = m[1]
	}
	add(prev, len(text))
	return out
}

// piece maps n bytes at offset at of an assembled chunk back to offset src of
// the source text.
type piece struct {
	at, src, n int
}

// clip keeps the part of pieces from offset from onward, rebased to zero.
func clip(pieces []piece, from int) []piece {
	var out []piece
	for _, p := range pieces {
		switch {
		case p.at+p.n <= from:
		case p.at >= from:
			out = append(out, piece{at: p.at - from, src: p.src, n: p.n})
		default:
			d := from - p.at
			out = append(out, piece{at: 0, src: p.src + d, n: p.n - d})
		}
	}
	return out
}

func (c *Chunker) sentences(text string) []Chunk {
	var (
		out              []Chunk
		cur              string
		pieces           []piece
		curStart, curEnd int
	)
	for _, s := range splitSentences(text) {
		switch {
		case cur == "":
			cur, curStart = s.text, s.start
			pieces = []piece{{at: 0, src: s.start, n: len(s.text)}}
		case len(cur)+1+len(s.text) > c.size:
			out = append(out, Chunk{Content: cur, Start: curStart, End: curEnd})
			tail := c.tail(cur)
			if tail == "" {
				cur, curStart = s.text, s.start
				pieces = []piece{{at: 0, src: s.start, n: len(s.text)}}
				break
			}
			pieces = clip(pieces, len(cur)-len(tail))
			curStart = pieces[0].src
			cur = tail + " " + s.text
			pieces = append(pieces, piece{at: len(tail) + 1, src: s.start, n: len(s.text)})
		default:
			pieces = append(pieces, piece{at: len(cur) + 1, src: s.start, n: len(s.text)})
			cur += " " + s.text
		}
		curEnd = s.end
	}
	if cur != "" {
		out = append(out, Chunk{Content: cur, Start: curStart, End: curEnd})
	}
	return out
}

func (c *Chunker) tail(s string) string {
	if c.overlap == 0 {
		return ""
	}
	if len(s) <= c.overlap {
		return s
	}
	i := len(s) - c.overlap
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return strings.TrimSpace(s[i:])
}
