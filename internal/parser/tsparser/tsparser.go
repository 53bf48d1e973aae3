package tsparser

import (
	"fmt"
	"strings"

	"github.com/keinsell/zkk/internal/parser"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tstypes "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

type TSParser struct{}

func New() *TSParser { return &TSParser{} }

// LanguageForPath maps a file name to the fence language it would carry.
func LanguageForPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".d.ts"):
		return ""
	case strings.HasSuffix(path, ".tsx"):
		return "tsx"
	case strings.HasSuffix(path, ".ts"):
		return "ts"
	case strings.HasSuffix(path, ".jsx"):
		return "jsx"
	case strings.HasSuffix(path, ".js"), strings.HasSuffix(path, ".mjs"):
		return "js"
	}
	return ""
}

func grammar(lang string) *tree_sitter.Language {
	switch strings.ToLower(lang) {
	case "ts", "typescript", "js", "javascript", "mjs":
		return tree_sitter.NewLanguage(tstypes.LanguageTypescript())
	case "tsx", "jsx":
		return tree_sitter.NewLanguage(tstypes.LanguageTSX())
	}
	return nil
}

func (p *TSParser) Supports(lang string) bool { return grammar(lang) != nil }

func (p *TSParser) Features(lang string, code []byte) ([]string, error) {
	language := grammar(lang)
	if language == nil {
		return nil, nil
	}
	ts := tree_sitter.NewParser()
	defer ts.Close()
	if err := ts.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("tsparser: set language %s: %w", lang, err)
	}

	tree := ts.Parse(code, nil)
	if tree == nil {
		return nil, fmt.Errorf("tsparser: parse failed")
	}
	defer tree.Close()

	var features []string
	seen := map[string]bool{}
	add := func(kind, name string) {
		if name == "" {
			return
		}
		f := kind + ":" + name
		if !seen[f] {
			seen[f] = true
			features = append(features, f)
		}
	}

	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "function_declaration", "generator_function_declaration":
			add("function", childIdentifier(n, code))
		case "class_declaration", "abstract_class_declaration":
			add("class", childIdentifier(n, code))
		case "method_definition", "method_signature":
			add("method", childIdentifier(n, code))
		case "interface_declaration":
			add("interface", childIdentifier(n, code))
		case "type_alias_declaration":
			add("type", childIdentifier(n, code))
		case "enum_declaration":
			add("enum", childIdentifier(n, code))
		case "variable_declarator":
			add("variable", childIdentifier(n, code))
		case "import_statement":
			if src := n.ChildByFieldName("source"); src != nil {
				add("import", strings.Trim(string(code[src.StartByte():src.EndByte()]), `"'`+"`"))
			}
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return features, nil
}

func childIdentifier(n *tree_sitter.Node, code []byte) string {
	if c := n.ChildByFieldName("name"); c != nil {
		return string(code[c.StartByte():c.EndByte()])
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		kind := c.Kind()
		if kind == "identifier" || kind == "property_identifier" || kind == "type_identifier" {
			return string(code[c.StartByte():c.EndByte()])
		}
	}
	return ""
}

var _ parser.FeatureExtractor = (*TSParser)(nil)
