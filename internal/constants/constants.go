package constants

const (
	DefaultEmbedURL = "http://localhost:8000/embed"
	DefaultModel    = "all-MiniLM-L6-v2"
	DefaultDBName   = ".zkk/index.db"
	DefaultProvider = "api"
	DefaultLogLevel = "info"

	DefaultTopK      = 10
	DefaultThreshold = 0.1
	DefaultWorkers   = 4
	DefaultCacheSize = 1000

	// EmbedBatchSize bounds how many chunks go to the embedder in one call.
	EmbedBatchSize = 32
)

// MarkdownExtensions are the document types picked up by an index run.
var MarkdownExtensions = []string{".md", ".markdown"}
