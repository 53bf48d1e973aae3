package storage

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/keinsell/zkk/internal/chunker"
	"github.com/keinsell/zkk/internal/parser"
	"github.com/keinsell/zkk/internal/util"
)

type ContentType string

const (
	ContentText  ContentType = "text"
	ContentCode  ContentType = "code"
	ContentMixed ContentType = "mixed"
)

var (
	codeExtensions = map[string]bool{
		".py": true, ".js": true, ".ts": true, ".tsx": true, ".java": true, ".cpp": true,
		".c": true, ".rs": true, ".go": true, ".rb": true, ".php": true,
	}
	declPrefixes = []string{
		"def ", "class ", "import ", "from ", "function ", "const ", "let ", "var ",
	}
	controlLine = regexp.MustCompile(`^\s*(if|for|while|try|catch)\s*\(`)
	fenceOpen   = regexp.MustCompile("(?m)^```([\\w+#-]*)[^\\n]*\\n")
)

// ClassifyContent decides whether content reads as code, prose, or prose
// with embedded code, using the file extension and line shapes.
func ClassifyContent(path, content string) ContentType {
	if codeExtensions[strings.ToLower(filepath.Ext(path))] {
		return ContentCode
	}
	total, code := 0, 0
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		total++
		if isCodeLine(line) {
			code++
		}
	}
	if total == 0 {
		return ContentText
	}
	if float64(code)/float64(total) > 0.3 {
		return ContentCode
	}
	if strings.Count(content, "```")/2 > 2 {
		return ContentMixed
	}
	return ContentText
}

func isCodeLine(line string) bool {
	for _, p := range declPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return strings.ContainsAny(line, "{}") ||
		strings.HasSuffix(line, ";") ||
		strings.HasPrefix(line, "#include") ||
		controlLine.MatchString(line)
}

// EmbedText is the text handed to the embedder for a chunk. It never affects
// chunk boundaries or checksums.
func EmbedText(ct ContentType, chunk string, features []string) string {
	var b strings.Builder
	switch ct {
	case ContentCode:
		b.WriteString("Code snippet: ")
	case ContentMixed:
		b.WriteString("Technical documentation: ")
	}
	b.WriteString(chunk)
	if len(features) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(features, " "))
	}
	return b.String()
}

// PreparedChunk is a chunk ready to be compared against storage and embedded.
type PreparedChunk struct {
	chunker.Chunk
	Index     int
	Checksum  string
	EmbedText string
}

// Preparer turns a document into PreparedChunks for one embedding model.
type Preparer struct {
	Chunker  *chunker.Chunker
	Features parser.FeatureExtractor
}

func (p *Preparer) Prepare(path, content, model string) []PreparedChunk {
	ch := p.Chunker
	if ch == nil {
		ch = chunker.New(chunker.Options{})
	}
	chunks := ch.Chunk(content)
	if len(chunks) == 0 {
		return nil
	}
	ct := ClassifyContent(path, content)
	features := p.features(path, content)

	out := make([]PreparedChunk, len(chunks))
	for i, c := range chunks {
		out[i] = PreparedChunk{
			Chunk:     c,
			Index:     i,
			Checksum:  util.ChunkChecksum(c.Content, model),
			EmbedText: EmbedText(ct, c.Content, featuresIn(features, c.Content)),
		}
	}
	return out
}

// features collects declarations from the whole file when it is source code
// and from every fenced block whose language the extractor understands.
func (p *Preparer) features(path, content string) []string {
	if p.Features == nil {
		return nil
	}
	var out []string
	if lang := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); p.Features.Supports(lang) {
		if fs, err := p.Features.Features(lang, []byte(content)); err == nil {
			out = append(out, fs...)
		}
		return out
	}
	for _, block := range fencedBlocks(content) {
		if !p.Features.Supports(block.lang) {
			continue
		}
		if fs, err := p.Features.Features(block.lang, []byte(block.code)); err == nil {
			out = append(out, fs...)
		}
	}
	return out
}

type fenced struct {
	lang string
	code string
}

func fencedBlocks(content string) []fenced {
	var out []fenced
	rest := content
	for {
		loc := fenceOpen.FindStringSubmatchIndex(rest)
		if loc == nil {
			return out
		}
		lang := rest[loc[2]:loc[3]]
		body := rest[loc[1]:]
		end := strings.Index(body, "\n```")
		if end < 0 {
			out = append(out, fenced{lang: lang, code: body})
			return out
		}
		out = append(out, fenced{lang: lang, code: body[:end+1]})
		rest = body[end+4:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		} else {
			return out
		}
	}
}

// featuresIn keeps the features whose declared name appears in chunk.
func featuresIn(features []string, chunk string) []string {
	var out []string
	for _, f := range features {
		name := f
		if i := strings.IndexByte(f, ':'); i >= 0 {
			name = f[i+1:]
		}
		if name != "" && strings.Contains(chunk, name) {
			out = append(out, f)
		}
	}
	return out
}
