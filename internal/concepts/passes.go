package concepts

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/keinsell/zkk/internal/models"
)

var (
	headingLine   = regexp.MustCompile(`^#{1,6}\s+(.+)$`)
	fenceLanguage = regexp.MustCompile("^```(\\w+)")
	emphasis      = regexp.MustCompile("\\*\\*([^*]+)\\*\\*|__([^_]+)__|`([^`]+)`")
	frequentTerm  = regexp.MustCompile(`\b[A-Z][a-z]+(?:[A-Z][a-z]+)*\b|[a-z]+(?:[A-Z][a-z]+)+\b`)
)

// StructuralPass reads markdown cues: headings, fence languages and emphasis.
type StructuralPass struct{}

func (StructuralPass) Name() string { return MethodStructural }

func (StructuralPass) Extract(content string) []Candidate {
	var out []Candidate
	for i, line := range strings.Split(content, "\n") {
		n := i + 1
		if m := headingLine.FindStringSubmatch(line); m != nil {
			out = append(out, Candidate{
				Name:       strings.TrimSpace(m[1]),
				Kind:       models.ConceptTopic,
				Category:   "heading",
				Confidence: 0.9,
				Context:    line,
				Line:       n,
				Method:     MethodStructural,
			})
		}
		if m := fenceLanguage.FindStringSubmatch(line); m != nil {
			out = append(out, Candidate{
				Name:       m[1],
				Kind:       models.ConceptTechnical,
				Category:   "programming_language",
				Confidence: 0.9,
				Context:    line,
				Line:       n,
				Method:     MethodStructural,
			})
		}
		for _, m := range emphasis.FindAllStringSubmatch(line, -1) {
			text := firstGroup(m)
			if len(text) <= 2 || isStopword(text) {
				continue
			}
			out = append(out, Candidate{
				Name:       text,
				Kind:       models.ConceptKeyword,
				Category:   "emphasized",
				Confidence: 0.6,
				Context:    m[0],
				Line:       n,
				Method:     MethodStructural,
			})
		}
	}
	return out
}

type vocabularyRule struct {
	category string
	kind     models.ConceptKind
	pattern  *regexp.Regexp
	// whole uses the full match instead of the first capture group.
	whole bool
}

var vocabulary = []vocabularyRule{
	{"programming_language", models.ConceptTechnical,
		regexp.MustCompile(`(?i)\b(Python|JavaScript|TypeScript|Rust|Go|Java|C\+\+|C#|Ruby|PHP|Swift)\b`), false},
	{"framework", models.ConceptTechnical,
		regexp.MustCompile(`(?i)\b(React|Vue|Angular|Django|Flask|FastAPI|Express|Spring|Rails|Laravel)\b`), false},
	{"library", models.ConceptTechnical,
		regexp.MustCompile(`(?i)\b(NumPy|Pandas|TensorFlow|PyTorch|scikit-learn|requests|axios|lodash)\b`), false},
	{"tool", models.ConceptTechnical,
		regexp.MustCompile(`(?i)\b(Docker|Kubernetes|Git|GitHub|GitLab|Jenkins|Terraform|AWS|Azure|GCP)\b`), false},
	{"database", models.ConceptTechnical,
		regexp.MustCompile(`(?i)\b(PostgreSQL|MySQL|MongoDB|Redis|SQLite|Elasticsearch|DynamoDB)\b`), false},
	{"api_method", models.ConceptEntity,
		regexp.MustCompile(`(?i)\b(GET|POST|PUT|DELETE|PATCH)\s+/([\w/\-{}]+)`), true},
	{"code_element", models.ConceptEntity,
		regexp.MustCompile("`([^`]+)`"), false},
	{"class_name", models.ConceptEntity,
		regexp.MustCompile(`(?i)\bclass\s+(\w+)`), false},
	{"function_name", models.ConceptEntity,
		regexp.MustCompile(`(?i)\bdef\s+(\w+)|function\s+(\w+)`), false},
	{"url", models.ConceptKeyword,
		regexp.MustCompile(`(?i)https?://[\w.\-/?=&]+`), true},
	{"version", models.ConceptKeyword,
		regexp.MustCompile(`(?i)\bv?\d+\.\d+(?:\.\d+)?\b`), true},
}

// VocabularyPass matches a fixed table of technical vocabulary line by line.
type VocabularyPass struct{}

func (VocabularyPass) Name() string { return MethodPattern }

func (VocabularyPass) Extract(content string) []Candidate {
	var out []Candidate
	for i, line := range strings.Split(content, "\n") {
		for _, rule := range vocabulary {
			for _, m := range rule.pattern.FindAllStringSubmatch(line, -1) {
				name := m[0]
				if !rule.whole {
					name = firstGroup(m)
				}
				name = strings.TrimSpace(name)
				if len(name) < 2 || isStopword(name) {
					continue
				}
				out = append(out, Candidate{
					Name:       name,
					Kind:       rule.kind,
					Category:   rule.category,
					Confidence: 0.8,
					Context:    m[0],
					Line:       i + 1,
					Method:     MethodPattern,
				})
			}
		}
	}
	return out
}

// FrequencyPass mines capitalised and camel-case terms that repeat.
type FrequencyPass struct{}

func (FrequencyPass) Name() string { return MethodFrequency }

func (FrequencyPass) Extract(content string) []Candidate {
	type seen struct {
		count   int
		line    int
		context string
	}
	var order []string
	terms := map[string]*seen{}
	for i, line := range strings.Split(content, "\n") {
		for _, w := range frequentTerm.FindAllString(line, -1) {
			s, ok := terms[w]
			if !ok {
				s = &seen{line: i + 1, context: strings.TrimSpace(line)}
				terms[w] = s
				order = append(order, w)
			}
			s.count++
		}
	}

	var out []Candidate
	for _, w := range order {
		s := terms[w]
		if len(w) <= 3 || s.count < 2 || isStopword(w) {
			continue
		}
		conf := 0.3 + float64(s.count)*0.1
		if unicode.IsUpper([]rune(w)[0]) {
			conf += 0.2
		}
		out = append(out, Candidate{
			Name:       w,
			Kind:       models.ConceptKeyword,
			Category:   "frequent_term",
			Confidence: min(0.9, conf),
			Context:    s.context,
			Line:       s.line,
			Method:     MethodFrequency,
		})
	}
	return out
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
