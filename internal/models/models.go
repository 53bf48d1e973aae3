package models

import "time"

type Document struct {
	ID        int64
	Path      string
	Name      string
	Title     string
	Content   string
	AST       string
	Checksum  string
	ModTime   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Link struct {
	SourceID int64
	Target   string
	Line     int
	Context  string
}

// LinkRef is a link as seen from one side of a document's link report.
type LinkRef struct {
	Path    string `json:"path,omitempty"`
	Title   string `json:"title,omitempty"`
	Target  string `json:"target"`
	Line    int    `json:"line"`
	Context string `json:"context"`
	Exists  bool   `json:"exists"`
}

type LinkReport struct {
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Outgoing []LinkRef `json:"outgoing"`
	Incoming []LinkRef `json:"incoming"`
}

type TextChunk struct {
	ID         int64
	DocumentID int64
	Index      int
	Content    string
	Start      int
	End        int
	Checksum   string
}

type ConceptKind string

const (
	ConceptTechnical ConceptKind = "technical"
	ConceptEntity    ConceptKind = "entity"
	ConceptTopic     ConceptKind = "topic"
	ConceptKeyword   ConceptKind = "keyword"
)

type Concept struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Normalized  string      `json:"normalized"`
	Kind        ConceptKind `json:"kind"`
	Category    string      `json:"category"`
	Confidence  float64     `json:"confidence"`
	Description string      `json:"description,omitempty"`
}

// ConceptMention is a merged concept together with the evidence of where it
// was first seen in a document.
type ConceptMention struct {
	Concept
	Frequency int    `json:"frequency"`
	FirstLine int    `json:"first_line"`
	Context   string `json:"context"`
	Method    string `json:"method"`
}

type FileConcept struct {
	DocumentID int64   `json:"document_id"`
	Path       string  `json:"path"`
	Title      string  `json:"title"`
	Concept    Concept `json:"concept"`
	Relevance  float64 `json:"relevance"`
	Frequency  int     `json:"frequency"`
	FirstLine  int     `json:"first_line"`
	Context    string  `json:"context"`
	Method     string  `json:"method"`
}

// ConceptRelation links two concepts identified by normalized name and kind.
type ConceptRelation struct {
	Source     string      `json:"source"`
	SourceKind ConceptKind `json:"source_kind"`
	Target     string      `json:"target"`
	TargetKind ConceptKind `json:"target_kind"`
	Kind       string      `json:"kind"`
	Strength   float64     `json:"strength"`
}

type TextMatch struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	Line  int    `json:"line"`
	Text  string `json:"text"`
}

type SemanticMatch struct {
	Chunk      TextChunk `json:"-"`
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Similarity float64   `json:"similarity"`
}

type KnowledgeStats struct {
	Documents       int     `json:"documents"`
	Links           int     `json:"links"`
	BrokenLinks     int     `json:"broken_links"`
	Orphans         int     `json:"orphans"`
	AvgLinksPerFile float64 `json:"avg_links_per_file"`
}

type EmbeddingStats struct {
	Model         string `json:"model"`
	Dimension     int    `json:"dimension"`
	Chunks        int    `json:"chunks"`
	Embeddings    int    `json:"embeddings"`
	Documents     int    `json:"documents"`
	TotalDocument int    `json:"total_documents"`
}

type CountEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ConceptStats struct {
	Total         int          `json:"total"`
	ByKind        []CountEntry `json:"by_kind"`
	TopCategories []CountEntry `json:"top_categories"`
	Documents     int          `json:"documents"`
	TopConcepts   []CountEntry `json:"top_concepts"`
}

// Index progress phases
type ProgressPhase string

const (
	PhaseIndexStart                ProgressPhase = "index_start"
	PhaseDocumentNew               ProgressPhase = "document_new"
	PhaseDocumentUpdate            ProgressPhase = "document_update"
	PhaseDocumentSkip              ProgressPhase = "document_skip"
	PhaseDocumentPurge             ProgressPhase = "document_purge"
	PhaseDocumentError             ProgressPhase = "document_error"
	PhaseModelLoading              ProgressPhase = "model_loading"
	PhaseModelLoaded               ProgressPhase = "model_loaded"
	PhaseModelFallback             ProgressPhase = "model_fallback"
	PhaseEmbeddingProgress         ProgressPhase = "embedding_progress"
	PhaseEmbeddingError            ProgressPhase = "embedding_error"
	PhaseEmbeddingComplete         ProgressPhase = "embedding_complete"
	PhaseConceptExtractionStart    ProgressPhase = "concept_extraction_start"
	PhaseConceptExtractionProgress ProgressPhase = "concept_extraction_progress"
	PhaseConceptExtractionComplete ProgressPhase = "concept_extraction_complete"
	PhaseConceptExtractionError    ProgressPhase = "concept_extraction_error"
	PhaseIndexComplete             ProgressPhase = "index_complete"
)

// ProgressEvent is a single named progress update. Percent is nil when the
// phase has no meaningful completion ratio.
type ProgressEvent struct {
	Phase   ProgressPhase
	Message string
	Path    string
	Percent *float64
}
