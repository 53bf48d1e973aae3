package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/keinsell/zkk/internal/storage"
	_ "modernc.org/sqlite"
)

// Store is the relational catalog: documents, links, concepts and their
// joins. It shares the database file with the vector store.
type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func dsn(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *Store) Close() error { return s.db.Close() }

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		ast_json TEXT,
		checksum TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_title ON documents(title);
	CREATE INDEX IF NOT EXISTS idx_documents_name ON documents(name);

	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		target TEXT NOT NULL,
		line INTEGER NOT NULL,
		context TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id);
	CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);

	CREATE TABLE IF NOT EXISTS concepts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		normalized TEXT NOT NULL,
		kind TEXT NOT NULL,
		category TEXT,
		confidence REAL NOT NULL DEFAULT 0,
		description TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE(normalized, kind)
	);
	CREATE INDEX IF NOT EXISTS idx_concepts_normalized ON concepts(normalized);

	CREATE TABLE IF NOT EXISTS file_concepts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		concept_id INTEGER NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
		relevance REAL NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 1,
		first_line INTEGER,
		context TEXT,
		method TEXT,
		UNIQUE(document_id, concept_id)
	);
	CREATE INDEX IF NOT EXISTS idx_file_concepts_concept ON file_concepts(concept_id);

	CREATE TABLE IF NOT EXISTS concept_relations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id INTEGER NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
		target_id INTEGER NOT NULL REFERENCES concepts(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		strength REAL NOT NULL,
		UNIQUE(source_id, target_id, kind)
	);`)
	return err
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

var (
	_ storage.DocumentStore = (*Store)(nil)
	_ storage.ConceptStore  = (*Store)(nil)
)
