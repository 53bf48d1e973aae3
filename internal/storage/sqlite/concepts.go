package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/keinsell/zkk/internal/concepts"
	"github.com/keinsell/zkk/internal/models"
)

type conceptKey struct {
	normalized string
	kind       models.ConceptKind
}

// StoreConcepts resolves every mention to a concept row, replaces the
// document's file concepts and upserts relations, all in one transaction.
// A concept's confidence only ever rises.
func (s *Store) StoreConcepts(
	ctx context.Context,
	docID int64,
	mentions []models.ConceptMention,
	relations []models.ConceptRelation,
) (int, error) {
	now := time.Now().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_concepts WHERE document_id = ?`, docID); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	upsert, err := tx.PrepareContext(ctx, `INSERT INTO concepts(
			name, normalized, kind, category, confidence, description, created_at)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(normalized, kind) DO UPDATE SET
		confidence=MAX(concepts.confidence, excluded.confidence)
		RETURNING id`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer func() { _ = upsert.Close() }()
	link, err := tx.PrepareContext(ctx, `INSERT INTO file_concepts(
			document_id, concept_id, relevance, frequency, first_line, context, method)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(document_id, concept_id) DO UPDATE SET
		relevance=MAX(file_concepts.relevance, excluded.relevance),
		frequency=excluded.frequency`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer func() { _ = link.Close() }()

	ids := make(map[conceptKey]int64, len(mentions))
	for _, m := range mentions {
		norm := m.Normalized
		if norm == "" {
			norm = concepts.Normalize(m.Name)
		}
		if norm == "" {
			continue
		}
		var id int64
		if err := upsert.QueryRowContext(ctx,
			m.Name, norm, string(m.Kind), m.Category, m.Confidence, m.Description, now,
		).Scan(&id); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		ids[conceptKey{norm, m.Kind}] = id
		if _, err := link.ExecContext(ctx,
			docID, id, m.Confidence, m.Frequency, m.FirstLine, m.Context, m.Method,
		); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}

	rel, err := tx.PrepareContext(ctx, `INSERT INTO concept_relations(source_id, target_id, kind, strength)
		VALUES(?,?,?,?)
		ON CONFLICT(source_id, target_id, kind) DO UPDATE SET strength=excluded.strength`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer func() { _ = rel.Close() }()
	for _, r := range relations {
		src, err := resolveConcept(ctx, tx, ids, conceptKey{r.Source, r.SourceKind})
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		dst, err := resolveConcept(ctx, tx, ids, conceptKey{r.Target, r.TargetKind})
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		if src == 0 || dst == 0 || src == dst {
			continue
		}
		if _, err := rel.ExecContext(ctx, src, dst, r.Kind, r.Strength); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func resolveConcept(ctx context.Context, tx *sql.Tx, ids map[conceptKey]int64, k conceptKey) (int64, error) {
	if id, ok := ids[k]; ok {
		return id, nil
	}
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM concepts WHERE normalized = ? AND kind = ?`, k.normalized, string(k.kind),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

const fileConceptColumns = `fc.document_id, d.path, d.title,
	c.id, c.name, c.normalized, c.kind, COALESCE(c.category, ''), c.confidence, COALESCE(c.description, ''),
	fc.relevance, fc.frequency, COALESCE(fc.first_line, 0), COALESCE(fc.context, ''), COALESCE(fc.method, '')`

func scanFileConcepts(rows *sql.Rows) ([]models.FileConcept, error) {
	defer func() { _ = rows.Close() }()
	var out []models.FileConcept
	for rows.Next() {
		var (
			fc   models.FileConcept
			kind string
		)
		if err := rows.Scan(&fc.DocumentID, &fc.Path, &fc.Title,
			&fc.Concept.ID, &fc.Concept.Name, &fc.Concept.Normalized, &kind, &fc.Concept.Category,
			&fc.Concept.Confidence, &fc.Concept.Description,
			&fc.Relevance, &fc.Frequency, &fc.FirstLine, &fc.Context, &fc.Method,
		); err != nil {
			return nil, err
		}
		fc.Concept.Kind = models.ConceptKind(kind)
		out = append(out, fc)
	}
	return out, rows.Err()
}

func (s *Store) DocumentConcepts(ctx context.Context, docID int64, limit int) ([]models.FileConcept, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileConceptColumns+`
		FROM file_concepts fc
		JOIN concepts c ON c.id = fc.concept_id
		JOIN documents d ON d.id = fc.document_id
		WHERE fc.document_id = ?
		ORDER BY fc.relevance DESC, fc.frequency DESC, c.name
		LIMIT ?`, docID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return scanFileConcepts(rows)
}

// FindConcept returns the documents mentioning concepts whose normalized name
// contains name. Exact matches sort first.
func (s *Store) FindConcept(ctx context.Context, name string, limit int) ([]models.FileConcept, error) {
	norm := concepts.Normalize(name)
	if norm == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileConceptColumns+`
		FROM file_concepts fc
		JOIN concepts c ON c.id = fc.concept_id
		JOIN documents d ON d.id = fc.document_id
		WHERE instr(c.normalized, ?1) > 0
		ORDER BY (c.normalized = ?1) DESC, fc.relevance DESC, fc.frequency DESC, d.path
		LIMIT ?2`, norm, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return scanFileConcepts(rows)
}

// RelatedConcepts returns relations touching the named concept, oriented so
// that Source is always the named concept.
func (s *Store) RelatedConcepts(ctx context.Context, name string, limit int) ([]models.ConceptRelation, error) {
	norm := concepts.Normalize(name)
	if norm == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT a.normalized, a.kind, b.normalized, b.kind, r.kind, r.strength
		FROM concept_relations r
		JOIN concepts a ON a.id = r.source_id
		JOIN concepts b ON b.id = r.target_id
		WHERE a.normalized = ?1 OR b.normalized = ?1
		ORDER BY r.strength DESC, r.id
		LIMIT ?2`, norm, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.ConceptRelation
	for rows.Next() {
		var (
			r            models.ConceptRelation
			sKind, tKind string
		)
		if err := rows.Scan(&r.Source, &sKind, &r.Target, &tKind, &r.Kind, &r.Strength); err != nil {
			return nil, err
		}
		r.SourceKind, r.TargetKind = models.ConceptKind(sKind), models.ConceptKind(tKind)
		if r.Source != norm {
			r.Source, r.Target = r.Target, r.Source
			r.SourceKind, r.TargetKind = r.TargetKind, r.SourceKind
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) DocumentsWithConcepts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT d.path FROM documents d
		JOIN file_concepts fc ON fc.document_id = d.id ORDER BY d.path`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ConceptStats(ctx context.Context, limit int) (models.ConceptStats, error) {
	var st models.ConceptStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concepts`).Scan(&st.Total); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT document_id) FROM file_concepts`).Scan(&st.Documents); err != nil {
		return st, err
	}
	var err error
	if st.ByKind, err = s.counts(ctx, `SELECT kind, COUNT(*) FROM concepts
		GROUP BY kind ORDER BY COUNT(*) DESC, kind`); err != nil {
		return st, err
	}
	if st.TopCategories, err = s.counts(ctx, `SELECT category, COUNT(*) FROM concepts
		WHERE category IS NOT NULL AND category != ''
		GROUP BY category ORDER BY COUNT(*) DESC, category LIMIT ?`, limitOrAll(limit)); err != nil {
		return st, err
	}
	if st.TopConcepts, err = s.counts(ctx, `SELECT c.name, COUNT(fc.document_id) FROM concepts c
		JOIN file_concepts fc ON fc.concept_id = c.id
		GROUP BY c.id ORDER BY COUNT(fc.document_id) DESC, c.name LIMIT ?`, limitOrAll(limit)); err != nil {
		return st, err
	}
	return st, nil
}

func (s *Store) counts(ctx context.Context, query string, args ...any) ([]models.CountEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.CountEntry
	for rows.Next() {
		var e models.CountEntry
		if err := rows.Scan(&e.Name, &e.Count); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
