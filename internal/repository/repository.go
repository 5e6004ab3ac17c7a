package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BerylCAtieno/document-task-extractor/internal/models"
)

type Repository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	SaveAnalysis(ctx context.Context, id string, result *models.AnalysisResult) error
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisResult, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, filename, file_size, content_type, s3_key, extracted_text, document_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.Filename,
		doc.FileSize,
		doc.ContentType,
		doc.S3Key,
		doc.ExtractedText,
		doc.DocumentType,
		doc.CreatedAt,
		doc.UpdatedAt,
	)

	return err
}

// GetByID returns nil, nil when no document has the id.
func (r *repository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document

	query := `
		SELECT id, filename, file_size, content_type, s3_key, extracted_text,
		       document_type, analysis_outcome, total_tasks, created_at, updated_at, analyzed_at
		FROM documents
		WHERE id = ?
	`

	err := r.db.GetContext(ctx, &doc, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *repository) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents
		SET filename = ?, file_size = ?, content_type = ?, extracted_text = ?, document_type = ?, updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.Filename,
		doc.FileSize,
		doc.ContentType,
		doc.ExtractedText,
		doc.DocumentType,
		time.Now(),
		doc.ID,
	)

	return err
}

// SaveAnalysis stores the full result as JSON alongside the columns used for listing.
func (r *repository) SaveAnalysis(ctx context.Context, id string, result *models.AnalysisResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	query := `
		UPDATE documents
		SET analysis_result = ?, document_type = ?, analysis_outcome = ?, total_tasks = ?, analyzed_at = ?, updated_at = ?
		WHERE id = ?
	`

	now := time.Now()
	res, err := r.db.ExecContext(ctx, query,
		string(resultJSON),
		string(result.DocumentType),
		string(result.AnalysisOutcome),
		result.TotalTasks,
		now,
		now,
		id,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetAnalysis returns nil, nil when the document exists but has not been analyzed,
// and sql.ErrNoRows when it does not exist.
func (r *repository) GetAnalysis(ctx context.Context, id string) (*models.AnalysisResult, error) {
	var resultJSON sql.NullString

	err := r.db.GetContext(ctx, &resultJSON, `SELECT analysis_result FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if !resultJSON.Valid || resultJSON.String == "" {
		return nil, nil
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored analysis: %w", err)
	}
	return &result, nil
}
