// ABOUTME: Knowledge document persistence for the SQLite store
// ABOUTME: Read-mostly reference material the pipeline grounds replies on

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const documentColumns = `id, bot_id, file_name, body, created_at`

// AddDocument stores a knowledge document for a bot
func (s *SQLiteStore) AddDocument(ctx context.Context, doc *KnowledgeSnippet) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.BotID,
		doc.FileName,
		doc.Body,
		doc.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("document added", "document_id", doc.ID, "bot_id", doc.BotID, "file_name", doc.FileName)
	return nil
}

// GetDocument retrieves a single document by ID
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*KnowledgeSnippet, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	doc := &KnowledgeSnippet{}
	var createdStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID,
		&doc.BotID,
		&doc.FileName,
		&doc.Body,
		&createdStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	doc.CreatedAt, err = time.Parse(time.RFC3339, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return doc, nil
}

// DocumentsForBot returns all documents attached to a bot. The pipeline
// bounds how many it actually uses, so no pagination here.
func (s *SQLiteStore) DocumentsForBot(ctx context.Context, botID string) ([]*KnowledgeSnippet, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE bot_id = ? ORDER BY created_at ASC`
	return s.queryDocuments(ctx, query, botID)
}

// ListDocuments returns all documents across bots
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]*KnowledgeSnippet, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at ASC`
	return s.queryDocuments(ctx, query)
}

// DeleteDocument removes a document by ID
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// queryDocuments is a helper that executes a query and returns documents
func (s *SQLiteStore) queryDocuments(ctx context.Context, query string, args ...any) ([]*KnowledgeSnippet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*KnowledgeSnippet
	for rows.Next() {
		doc := &KnowledgeSnippet{}
		var createdStr string

		if err := rows.Scan(
			&doc.ID,
			&doc.BotID,
			&doc.FileName,
			&doc.Body,
			&createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}

		doc.CreatedAt, err = time.Parse(time.RFC3339, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}
