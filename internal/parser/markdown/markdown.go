package markdown

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/parser"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var wikiLink = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)

type Parser struct {
	md goldmark.Markdown
}

func New() *Parser {
	return &Parser{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

func (p *Parser) ParseDocument(path string, content []byte) (*parser.ParsedDocument, error) {
	tree, err := p.AST(content)
	if err != nil {
		return nil, err
	}
	return &parser.ParsedDocument{
		Title: Title(path, string(content)),
		AST:   tree,
		Links: Links(string(content)),
	}, nil
}

// Title returns the text of the first "# " line, or the file's base name
// without extension.
func Title(path, content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			if t := strings.TrimSpace(line[2:]); t != "" {
				return t
			}
		}
	}
	return Stem(path)
}

func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Links extracts [[Target]] and [[Target|Alias]] references with 1-based
// line numbers.
func Links(content string) []models.Link {
	var links []models.Link
	for i, line := range strings.Split(content, "\n") {
		for _, m := range wikiLink.FindAllStringSubmatch(line, -1) {
			target := m[1]
			if idx := strings.Index(target, "|"); idx >= 0 {
				target = target[:idx]
			}
			target = strings.TrimSpace(target)
			if target == "" {
				continue
			}
			links = append(links, models.Link{
				Target:  target,
				Line:    i + 1,
				Context: strings.TrimSpace(line),
			})
		}
	}
	return links
}

type node struct {
	Kind     string  `json:"kind"`
	Level    int     `json:"level,omitempty"`
	Lang     string  `json:"lang,omitempty"`
	Text     string  `json:"text,omitempty"`
	Children []*node `json:"children,omitempty"`
}

// AST renders the goldmark syntax tree of content as JSON.
func (p *Parser) AST(content []byte) (string, error) {
	doc := p.md.Parser().Parse(text.NewReader(content))
	out, err := json.Marshal(convert(doc, content))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func convert(n ast.Node, src []byte) *node {
	out := &node{Kind: n.Kind().String()}
	switch v := n.(type) {
	case *ast.Heading:
		out.Level = v.Level
	case *ast.FencedCodeBlock:
		out.Lang = string(v.Language(src))
		out.Text = blockText(v, src)
	case *ast.CodeBlock:
		out.Text = blockText(v, src)
	case *ast.Text:
		out.Text = string(v.Segment.Value(src))
	case *ast.String:
		out.Text = string(v.Value)
	case *ast.Link:
		out.Text = string(v.Destination)
	case *ast.AutoLink:
		out.Text = string(v.URL(src))
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out.Children = append(out.Children, convert(c, src))
	}
	return out
}

func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}
