package sqlvec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/keinsell/zkk/internal/constants"
	"github.com/keinsell/zkk/internal/embeddings"
	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/progress"
	"github.com/keinsell/zkk/internal/storage"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store keeps text chunks and their embeddings next to the document catalog
// and answers similarity queries with an exhaustive cosine scan.
type Store struct {
	db       *sql.DB
	embedder embeddings.Embedder
	query    *embeddings.CachedEmbedder
	prep     *storage.Preparer
	logger   *zap.Logger
}

type Options struct {
	Preparer  *storage.Preparer
	CacheSize int
	Logger    *zap.Logger
}

func New(path string, embedder embeddings.Embedder, opts Options) (*Store, error) {
	// enable sqlite-vec for all future connections
	sqlite_vec.Auto()
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	if opts.Preparer == nil {
		opts.Preparer = &storage.Preparer{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		db:       db,
		embedder: embedder,
		query:    embeddings.NewCached(embedder, opts.CacheSize),
		prep:     opts.Preparer,
		logger:   opts.Logger,
	}, nil
}

func dsn(path string) string {
	return path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
}

func (s *Store) Close() error { return s.db.Close() }

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS text_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		start_char INTEGER NOT NULL,
		end_char INTEGER NOT NULL,
		checksum TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(document_id, chunk_index)
	);
	CREATE TABLE IF NOT EXISTS embeddings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chunk_id INTEGER NOT NULL REFERENCES text_chunks(id) ON DELETE CASCADE,
		model TEXT NOT NULL,
		dimension INTEGER NOT NULL,
		norm REAL NOT NULL,
		vector BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(chunk_id, model)
	);
	CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model, dimension);
	CREATE TABLE IF NOT EXISTS embedding_metadata (
		model TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		total_embeddings INTEGER NOT NULL,
		last_updated INTEGER NOT NULL
	);`)
	return err
}

type storedChunk struct {
	id       int64
	checksum string
	content  string
	start    int
	end      int
	embedded bool
}

// pending is a chunk that needs a fresh embedding for the active model.
type pending struct {
	chunk storage.PreparedChunk
	prior *storedChunk
	vec   []float32
	err   error
}

// StoreEmbeddings brings the chunks of one document in line with content for
// the active model. It returns how many chunks were embedded. Chunks whose
// checksum already carries an embedding are left alone unless force is set.
// An embedding failure drops that chunk and processing moves on.
func (s *Store) StoreEmbeddings(ctx context.Context, docID int64, path, content string, force bool) (int, error) {
	if err := embeddings.Init(ctx, s.embedder); err != nil {
		return 0, err
	}
	model := s.embedder.ModelName()
	chunks := s.prep.Prepare(path, content, model)

	var work []*pending
	for _, pc := range chunks {
		prior, err := s.chunkAt(ctx, docID, pc.Index, model)
		if err != nil {
			return 0, err
		}
		if prior != nil && prior.embedded && !force &&
			(prior.checksum == pc.Checksum || prior.content == pc.Content) {
			if prior.start != pc.Start || prior.end != pc.End {
				if _, err := s.db.ExecContext(ctx,
					`UPDATE text_chunks SET start_char = ?, end_char = ? WHERE id = ?`,
					pc.Start, pc.End, prior.id); err != nil {
					return 0, err
				}
			}
			continue
		}
		work = append(work, &pending{chunk: pc, prior: prior})
	}

	s.embed(ctx, work)

	stored := 0
	for i, p := range work {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if p.err != nil {
			s.logger.Warn("embedding failed",
				zap.String("path", path),
				zap.Int("chunk", p.chunk.Index),
				zap.Error(p.err))
			progress.Emit(ctx, models.PhaseEmbeddingError, path,
				fmt.Sprintf("chunk %d: %v", p.chunk.Index, p.err))
			if p.prior != nil {
				if _, err := s.db.ExecContext(ctx, `DELETE FROM text_chunks WHERE id = ?`, p.prior.id); err != nil {
					return stored, err
				}
			}
			continue
		}
		if err := s.write(ctx, docID, model, p); err != nil {
			return stored, err
		}
		stored++
		progress.EmitPercent(ctx, models.PhaseEmbeddingProgress, path,
			fmt.Sprintf("embedded chunk %d/%d", i+1, len(work)),
			float64(i+1)/float64(len(work))*100)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM text_chunks WHERE document_id = ? AND chunk_index >= ?`, docID, len(chunks)); err != nil {
		return stored, err
	}
	if stored > 0 {
		if err := s.touchMetadata(ctx, model); err != nil {
			return stored, err
		}
	}
	progress.Emit(ctx, models.PhaseEmbeddingComplete, path,
		fmt.Sprintf("%d of %d chunks embedded", stored, len(chunks)))
	return stored, nil
}

// embed fills in vectors for work in batches. A failed batch is retried one
// chunk at a time so a single bad chunk only costs itself.
func (s *Store) embed(ctx context.Context, work []*pending) {
	for start := 0; start < len(work); start += constants.EmbedBatchSize {
		end := min(start+constants.EmbedBatchSize, len(work))
		batch := work[start:end]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.chunk.EmbedText
		}
		vecs, err := s.embedder.EmbedTexts(ctx, texts)
		if err == nil && len(vecs) == len(batch) {
			for i, p := range batch {
				p.vec, p.err = checkVector(vecs[i])
			}
			continue
		}
		for _, p := range batch {
			if ctx.Err() != nil {
				p.err = ctx.Err()
				continue
			}
			one, err := s.embedder.EmbedTexts(ctx, []string{p.chunk.EmbedText})
			switch {
			case err != nil:
				p.err = err
			case len(one) != 1:
				p.err = fmt.Errorf("embedder returned %d vectors for 1 text", len(one))
			default:
				p.vec, p.err = checkVector(one[0])
			}
		}
	}
}

func checkVector(v []float32) ([]float32, error) {
	if len(v) == 0 {
		return nil, errors.New("empty embedding")
	}
	return v, nil
}

func (s *Store) chunkAt(ctx context.Context, docID int64, index int, model string) (*storedChunk, error) {
	var c storedChunk
	err := s.db.QueryRowContext(ctx, `SELECT c.id, c.checksum, c.content, c.start_char, c.end_char,
		EXISTS(SELECT 1 FROM embeddings e WHERE e.chunk_id = c.id AND e.model = ?)
		FROM text_chunks c WHERE c.document_id = ? AND c.chunk_index = ?`,
		model, docID, index,
	).Scan(&c.id, &c.checksum, &c.content, &c.start, &c.end, &c.embedded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// write persists one chunk and its embedding in a single transaction. When
// the stored chunk has the same content only this model's vector is replaced,
// which keeps vectors of other models attached to it.
func (s *Store) write(ctx context.Context, docID int64, model string, p *pending) error {
	blob, err := sqlite_vec.SerializeFloat32(p.vec)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var chunkID int64
	if p.prior != nil && p.prior.content == p.chunk.Content {
		chunkID = p.prior.id
		if _, err := tx.ExecContext(ctx, `UPDATE text_chunks
			SET checksum = ?, start_char = ?, end_char = ? WHERE id = ?`,
			p.chunk.Checksum, p.chunk.Start, p.chunk.End, chunkID); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM embeddings WHERE chunk_id = ? AND model = ?`, chunkID, model); err != nil {
			_ = tx.Rollback()
			return err
		}
	} else {
		if p.prior != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM text_chunks WHERE id = ?`, p.prior.id); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO text_chunks(
				document_id, chunk_index, content, start_char, end_char, checksum, created_at)
			VALUES(?,?,?,?,?,?,?)`,
			docID, p.chunk.Index, p.chunk.Content, p.chunk.Start, p.chunk.End, p.chunk.Checksum, now)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if chunkID, err = res.LastInsertId(); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO embeddings(
			chunk_id, model, dimension, norm, vector, created_at)
		VALUES(?,?,?,?,?,?)`,
		chunkID, model, len(p.vec), norm(p.vec), blob, now); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) touchMetadata(ctx context.Context, model string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO embedding_metadata(model, dimension, total_embeddings, last_updated)
		SELECT ?1, COALESCE(MAX(dimension), 0), COUNT(*), ?2 FROM embeddings WHERE model = ?1
		ON CONFLICT(model) DO UPDATE SET
		dimension=excluded.dimension,
		total_embeddings=excluded.total_embeddings,
		last_updated=excluded.last_updated`, model, time.Now().Unix())
	return err
}

// Search embeds query and ranks every stored chunk of the active model by
// cosine similarity. Results at or above threshold are ordered by similarity,
// then by insertion order. An unavailable provider yields no results.
func (s *Store) Search(ctx context.Context, query string, topK int, threshold float64) ([]models.SemanticMatch, error) {
	if err := s.query.Init(ctx); err != nil {
		s.logger.Warn("semantic search without embedding provider", zap.Error(err))
		return nil, nil
	}
	if topK <= 0 {
		topK = constants.DefaultTopK
	}
	vec, err := s.query.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if norm(vec) == 0 {
		return nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT * FROM (
			SELECT c.id, c.document_id, c.chunk_index, c.content, c.start_char, c.end_char, c.checksum,
				d.path, d.title, e.id AS eid,
				CASE WHEN e.dimension = ?2 AND e.norm > 0
					THEN 1 - vec_distance_cosine(e.vector, ?3) END AS similarity
			FROM embeddings e
			JOIN text_chunks c ON c.id = e.chunk_id
			JOIN documents d ON d.id = c.document_id
			WHERE e.model = ?1
		)
		WHERE similarity IS NOT NULL AND similarity >= ?4
		ORDER BY similarity DESC, eid ASC
		LIMIT ?5`, s.query.ModelName(), len(vec), blob, threshold, topK)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.SemanticMatch
	for rows.Next() {
		var (
			m   models.SemanticMatch
			eid int64
		)
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.Index, &m.Chunk.Content,
			&m.Chunk.Start, &m.Chunk.End, &m.Chunk.Checksum, &m.Path, &m.Title, &eid, &m.Similarity,
		); err != nil {
			return nil, err
		}
		m.ChunkIndex = m.Chunk.Index
		m.Content = m.Chunk.Content
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteByDocument(ctx context.Context, docID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM text_chunks WHERE document_id = ?`, docID)
	return err
}

func (s *Store) Stats(ctx context.Context) (models.EmbeddingStats, error) {
	var st models.EmbeddingStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM text_chunks`).Scan(&st.Chunks); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&st.TotalDocument); err != nil {
		return st, err
	}
	if err := embeddings.Init(ctx, s.embedder); err != nil {
		return st, nil
	}
	st.Model = s.embedder.ModelName()
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT c.document_id), COALESCE(MAX(e.dimension), 0)
		FROM embeddings e JOIN text_chunks c ON c.id = e.chunk_id
		WHERE e.model = ?`, st.Model,
	).Scan(&st.Embeddings, &st.Documents, &st.Dimension)
	if st.Dimension == 0 {
		st.Dimension = s.embedder.Dimension()
	}
	return st, err
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

var _ storage.VectorStore = (*Store)(nil)
