package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/keinsell/zkk/internal/fingerprint"
	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/storage"
)

func (s *Store) StoredFingerprint(ctx context.Context, path string) (*fingerprint.Fingerprint, error) {
	var fp fingerprint.Fingerprint
	err := s.db.QueryRowContext(ctx,
		`SELECT checksum, mtime FROM documents WHERE path = ?`, path,
	).Scan(&fp.Checksum, &fp.ModTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &fp, nil
}

func (s *Store) UpsertDocument(ctx context.Context, doc *models.Document, links []models.Link) (int64, error) {
	now := time.Now().Unix()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRowContext(ctx, `INSERT INTO documents(
			path, name, title, content, ast_json, checksum, mtime, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
		name=excluded.name,
		title=excluded.title,
		content=excluded.content,
		ast_json=excluded.ast_json,
		checksum=excluded.checksum,
		mtime=excluded.mtime,
		updated_at=excluded.updated_at
		RETURNING id`,
		doc.Path, doc.Name, doc.Title, doc.Content, doc.AST, doc.Checksum, doc.ModTime, now, now,
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE source_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO links(source_id, target, line, context) VALUES(?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer func() { _ = stmt.Close() }()
	for _, l := range links {
		if _, err := stmt.ExecContext(ctx, id, l.Target, l.Line, l.Context); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	doc.ID = id
	return id, nil
}

func (s *Store) CommitFingerprint(ctx context.Context, docID int64, fp fingerprint.Fingerprint) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET checksum = ?, mtime = ? WHERE id = ?`,
		fp.Checksum, fp.ModTime, docID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document; links, chunks, embeddings and file
// concepts go with it through ON DELETE CASCADE.
func (s *Store) DeleteDocument(ctx context.Context, path string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) GetDocument(ctx context.Context, path string) (*models.Document, error) {
	var (
		doc                  models.Document
		ast                  sql.NullString
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, path, name, title, content, ast_json, checksum,
		mtime, created_at, updated_at FROM documents WHERE path = ?`, path,
	).Scan(&doc.ID, &doc.Path, &doc.Name, &doc.Title, &doc.Content, &ast, &doc.Checksum,
		&doc.ModTime, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	doc.AST = ast.String
	doc.CreatedAt = time.Unix(createdAt, 0)
	doc.UpdatedAt = time.Unix(updatedAt, 0)
	return &doc, nil
}

func (s *Store) DocumentID(ctx context.Context, path string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotFound
	}
	return id, err
}

// ListPaths returns stored paths starting with prefix, sorted.
func (s *Store) ListPaths(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM documents
		WHERE substr(path, 1, length(?1)) = ?1 ORDER BY path`, prefix)
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

func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// SearchText returns every line containing query, case-insensitively.
func (s *Store) SearchText(ctx context.Context, query string) ([]models.TextMatch, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path, title, content FROM documents
		WHERE instr(lower(title), ?1) > 0 OR instr(lower(content), ?1) > 0
		ORDER BY path`, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []models.TextMatch
	for rows.Next() {
		var path, title, content string
		if err := rows.Scan(&path, &title, &content); err != nil {
			return nil, err
		}
		for i, line := range strings.Split(content, "\n") {
			if strings.Contains(strings.ToLower(line), q) {
				out = append(out, models.TextMatch{
					Path:  path,
					Title: title,
					Line:  i + 1,
					Text:  strings.TrimSpace(line),
				})
			}
		}
	}
	return out, rows.Err()
}
