package concepts_test

import (
	"testing"

	"github.com/keinsell/zkk/internal/concepts"
	"github.com/keinsell/zkk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(cands []concepts.Candidate, name string, kind models.ConceptKind) *concepts.Candidate {
	for i := range cands {
		if cands[i].Name == name && cands[i].Kind == kind {
			return &cands[i]
		}
	}
	return nil
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello world", concepts.Normalize("  Hello,   World! "))
	assert.Equal(t, "get apiusers", concepts.Normalize("GET /api/users"))
	assert.Equal(t, "snake_case", concepts.Normalize("snake_case"))
	assert.Equal(t, "", concepts.Normalize("!!!"))
}

func TestStructuralPass(t *testing.T) {
	content := "# Getting Started\n```go\nfmt.Println()\n```\nUse **Docker Compose** and `kubectl` or **it**."

	got := concepts.StructuralPass{}.Extract(content)

	heading := find(got, "Getting Started", models.ConceptTopic)
	require.NotNil(t, heading)
	assert.Equal(t, 1, heading.Line)
	assert.InDelta(t, 0.9, heading.Confidence, 1e-9)

	lang := find(got, "go", models.ConceptTechnical)
	require.NotNil(t, lang)
	assert.Equal(t, "programming_language", lang.Category)

	assert.NotNil(t, find(got, "Docker Compose", models.ConceptKeyword))
	assert.NotNil(t, find(got, "kubectl", models.ConceptKeyword))
	assert.Nil(t, find(got, "it", models.ConceptKeyword))
}

func TestVocabularyPass(t *testing.T) {
	content := "We deploy Python apps with Docker to AWS.\n" +
		"GET /api/users returns users. See https://example.com/docs for v1.2.3\n" +
		"class UserService handles function loadUsers"

	got := concepts.VocabularyPass{}.Extract(content)

	py := find(got, "Python", models.ConceptTechnical)
	require.NotNil(t, py)
	assert.Equal(t, "programming_language", py.Category)
	assert.Equal(t, 1, py.Line)
	assert.InDelta(t, 0.8, py.Confidence, 1e-9)

	assert.NotNil(t, find(got, "Docker", models.ConceptTechnical))
	assert.NotNil(t, find(got, "AWS", models.ConceptTechnical))
	assert.NotNil(t, find(got, "GET /api/users", models.ConceptEntity))
	assert.NotNil(t, find(got, "https://example.com/docs", models.ConceptKeyword))
	assert.NotNil(t, find(got, "v1.2.3", models.ConceptKeyword))
	assert.NotNil(t, find(got, "UserService", models.ConceptEntity))
	assert.NotNil(t, find(got, "loadUsers", models.ConceptEntity))
}

func TestFrequencyPass(t *testing.T) {
	content := "Kubernetes is great. Kubernetes scales.\nfooBar and fooBar. Single Word once."

	got := concepts.FrequencyPass{}.Extract(content)

	k := find(got, "Kubernetes", models.ConceptKeyword)
	require.NotNil(t, k)
	assert.InDelta(t, 0.7, k.Confidence, 1e-9)
	assert.Equal(t, 1, k.Line)

	fb := find(got, "fooBar", models.ConceptKeyword)
	require.NotNil(t, fb)
	assert.InDelta(t, 0.5, fb.Confidence, 1e-9)
	assert.Equal(t, 2, fb.Line)

	assert.Nil(t, find(got, "Single", models.ConceptKeyword))
}

func TestFrequencyPassCapsConfidence(t *testing.T) {
	content := "Gopher Gopher Gopher Gopher Gopher Gopher Gopher Gopher"
	got := concepts.FrequencyPass{}.Extract(content)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
}

func TestMergeKeepsHighestConfidence(t *testing.T) {
	in := []concepts.Candidate{
		{Name: "Docker", Kind: models.ConceptKeyword, Confidence: 0.6, Method: "a"},
		{Name: "docker!", Kind: models.ConceptKeyword, Confidence: 0.9, Method: "b"},
		{Name: "DOCKER", Kind: models.ConceptKeyword, Confidence: 0.9, Method: "c"},
		{Name: "Docker", Kind: models.ConceptTechnical, Confidence: 0.8, Method: "d"},
		{Name: "???", Kind: models.ConceptKeyword, Confidence: 1},
	}

	got := concepts.Merge(in)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Method)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-9)
	assert.Equal(t, models.ConceptTechnical, got[1].Kind)
}

func TestMergeOrderIndependentConfidence(t *testing.T) {
	a := concepts.Candidate{Name: "Redis", Kind: models.ConceptTechnical, Confidence: 0.8}
	b := concepts.Candidate{Name: "redis", Kind: models.ConceptTechnical, Confidence: 0.9}

	ab := concepts.Merge([]concepts.Candidate{a, b})
	ba := concepts.Merge([]concepts.Candidate{b, a})
	require.Len(t, ab, 1)
	require.Len(t, ba, 1)
	assert.Equal(t, ab[0].Confidence, ba[0].Confidence)
}

func TestRelations(t *testing.T) {
	content := "Python and Docker work well. Python is nice! Docker alone. Python with docker again."
	cands := []concepts.Candidate{
		{Name: "Python", Kind: models.ConceptTechnical},
		{Name: "Docker", Kind: models.ConceptTechnical},
		{Name: "Rust", Kind: models.ConceptTechnical},
	}

	rels := concepts.Relations(content, cands)
	require.Len(t, rels, 1)
	assert.Equal(t, "python", rels[0].Source)
	assert.Equal(t, "docker", rels[0].Target)
	assert.Equal(t, concepts.RelationRelated, rels[0].Kind)
	assert.InDelta(t, 0.6, rels[0].Strength, 1e-9)
}

func TestRelationsStrengthCapped(t *testing.T) {
	content := "A Go B. A Go B. A Go B. A Go B."
	cands := []concepts.Candidate{
		{Name: "A Go", Kind: models.ConceptTopic},
		{Name: "B", Kind: models.ConceptKeyword},
	}
	rels := concepts.Relations(content, cands)
	require.Len(t, rels, 1)
	assert.InDelta(t, 1.0, rels[0].Strength, 1e-9)
}

func TestExtractDeterministic(t *testing.T) {
	content := "# Deploying Services\n\nWe use **Terraform** with AWS. Terraform plans are reviewed.\n" +
		"```python\nimport requests\n```\nTerraform applies changes. See `main.tf`."
	e := concepts.New()

	first := e.Extract(content)
	second := e.Extract(content)
	assert.Equal(t, first, second)
	require.NotEmpty(t, first.Concepts)
	require.NotEmpty(t, first.Relations)

	var tf *models.ConceptMention
	for i := range first.Concepts {
		c := &first.Concepts[i]
		if c.Normalized == "terraform" && c.Kind == models.ConceptTechnical {
			tf = c
		}
	}
	require.NotNil(t, tf)
	assert.Equal(t, 3, tf.Frequency)
	assert.Equal(t, concepts.MethodPattern, tf.Method)
}

func TestExtractEmpty(t *testing.T) {
	res := concepts.New().Extract("")
	assert.Empty(t, res.Concepts)
	assert.Empty(t, res.Relations)
}
