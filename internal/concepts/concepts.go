package concepts

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/keinsell/zkk/internal/models"
)

const (
	MethodStructural = "structural"
	MethodPattern    = "pattern"
	MethodFrequency  = "frequency"

	RelationRelated = "related"
)

// Candidate is a single concept mention produced by a pass.
type Candidate struct {
	Name       string
	Kind       models.ConceptKind
	Category   string
	Confidence float64
	Context    string
	Line       int
	Method     string
}

// Pass is one independent extraction strategy.
type Pass interface {
	Name() string
	Extract(content string) []Candidate
}

type Result struct {
	Concepts  []models.ConceptMention
	Relations []models.ConceptRelation
}

type Extractor struct {
	passes []Pass
}

// New returns an extractor running the given passes in order. With no
// passes it uses the structural, vocabulary and frequency passes.
func New(passes ...Pass) *Extractor {
	if len(passes) == 0 {
		passes = DefaultPasses()
	}
	return &Extractor{passes: passes}
}

func DefaultPasses() []Pass {
	return []Pass{StructuralPass{}, VocabularyPass{}, FrequencyPass{}}
}

func (e *Extractor) Extract(content string) Result {
	var all []Candidate
	for _, p := range e.passes {
		all = append(all, p.Extract(content)...)
	}
	merged := Merge(all)

	lower := strings.ToLower(content)
	mentions := make([]models.ConceptMention, len(merged))
	for i, c := range merged {
		freq := strings.Count(lower, strings.ToLower(c.Name))
		if freq < 1 {
			freq = 1
		}
		mentions[i] = models.ConceptMention{
			Concept: models.Concept{
				Name:       c.Name,
				Normalized: Normalize(c.Name),
				Kind:       c.Kind,
				Category:   c.Category,
				Confidence: c.Confidence,
			},
			Frequency: freq,
			FirstLine: c.Line,
			Context:   c.Context,
			Method:    c.Method,
		}
	}
	return Result{Concepts: mentions, Relations: Relations(content, merged)}
}

// Normalize lowercases name, drops punctuation and collapses whitespace.
func Normalize(name string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
	return strings.Join(strings.Fields(stripped), " ")
}

// Merge deduplicates candidates by normalized name and kind. The candidate
// with the higher confidence wins; on a tie the first one seen is kept.
// Output preserves first-seen order of each key.
func Merge(cands []Candidate) []Candidate {
	type key struct {
		name string
		kind models.ConceptKind
	}
	index := make(map[key]int, len(cands))
	var out []Candidate
	for _, c := range cands {
		k := key{Normalize(c.Name), c.Kind}
		if k.name == "" {
			continue
		}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, c)
			continue
		}
		if c.Confidence > out[i].Confidence {
			out[i] = c
		}
	}
	return out
}

var spanSplit = regexp.MustCompile(`[.!?]\s+`)

// Relations counts, for every pair of concepts, the sentence-like spans that
// mention both. The pair scan is quadratic in the number of concepts, which
// is fine for tens of concepts per document but not for thousands.
func Relations(content string, concepts []Candidate) []models.ConceptRelation {
	if len(concepts) < 2 {
		return nil
	}
	spans := spanSplit.Split(strings.ToLower(content), -1)
	names := make([]string, len(concepts))
	for i, c := range concepts {
		names[i] = strings.ToLower(c.Name)
	}

	var out []models.ConceptRelation
	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			n := 0
			for _, s := range spans {
				if strings.Contains(s, names[i]) && strings.Contains(s, names[j]) {
					n++
				}
			}
			if n == 0 {
				continue
			}
			out = append(out, models.ConceptRelation{
				Source:     Normalize(concepts[i].Name),
				SourceKind: concepts[i].Kind,
				Target:     Normalize(concepts[j].Name),
				TargetKind: concepts[j].Kind,
				Kind:       RelationRelated,
				Strength:   min(1.0, float64(n)*0.3),
			})
		}
	}
	return out
}
