package sqlite

import (
	"context"
	"fmt"

	"github.com/keinsell/zkk/internal/models"
)

// A link target resolves when some document's title or file stem matches it
// case-insensitively. With duplicate titles the target resolves to all of
// them; no attempt is made to pick one.
const resolvesTarget = `EXISTS (SELECT 1 FROM documents r
	WHERE lower(r.title) = lower(trim(%s)) OR lower(r.name) = lower(trim(%s)))`

func resolves(col string) string {
	return fmt.Sprintf(resolvesTarget, col, col)
}

func (s *Store) GetLinks(ctx context.Context, path string) (*models.LinkReport, error) {
	doc, err := s.GetDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	report := &models.LinkReport{
		Path:     doc.Path,
		Title:    doc.Title,
		Outgoing: []models.LinkRef{},
		Incoming: []models.LinkRef{},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT l.target, l.line, COALESCE(l.context, ''), `+
		resolves("l.target")+`
		FROM links l WHERE l.source_id = ? ORDER BY l.line, l.id`, doc.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var ref models.LinkRef
		if err := rows.Scan(&ref.Target, &ref.Line, &ref.Context, &ref.Exists); err != nil {
			_ = rows.Close()
			return nil, err
		}
		report.Outgoing = append(report.Outgoing, ref)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT d.path, d.title, l.target, l.line, COALESCE(l.context, '')
		FROM links l JOIN documents d ON d.id = l.source_id
		WHERE l.source_id != ?1
		AND (lower(trim(l.target)) = lower(?2) OR lower(trim(l.target)) = lower(?3))
		ORDER BY d.path, l.line`, doc.ID, doc.Title, doc.Name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		ref := models.LinkRef{Exists: true}
		if err := rows.Scan(&ref.Path, &ref.Title, &ref.Target, &ref.Line, &ref.Context); err != nil {
			return nil, err
		}
		report.Incoming = append(report.Incoming, ref)
	}
	return report, rows.Err()
}

// BrokenLinks lists distinct link targets that resolve to no document.
func (s *Store) BrokenLinks(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT l.target FROM links l
		WHERE NOT `+resolves("l.target")+` ORDER BY l.target`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Orphans lists documents that no other document links to.
func (s *Store) Orphans(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT d.id, d.path, d.name, d.title FROM documents d
		WHERE NOT EXISTS (
			SELECT 1 FROM links l WHERE l.source_id != d.id
			AND (lower(trim(l.target)) = lower(d.title) OR lower(trim(l.target)) = lower(d.name))
		) ORDER BY d.path`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Path, &d.Name, &d.Title); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Stats(ctx context.Context) (models.KnowledgeStats, error) {
	var st models.KnowledgeStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&st.Documents); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`).Scan(&st.Links); err != nil {
		return st, err
	}
	broken, err := s.BrokenLinks(ctx)
	if err != nil {
		return st, err
	}
	st.BrokenLinks = len(broken)
	orphans, err := s.Orphans(ctx)
	if err != nil {
		return st, err
	}
	st.Orphans = len(orphans)
	if st.Documents > 0 {
		st.AvgLinksPerFile = float64(st.Links) / float64(st.Documents)
	}
	return st, nil
}
