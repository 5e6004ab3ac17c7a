package models

import (
	"time"
)

type Document struct {
	ID              string          `json:"id" db:"id"`
	Filename        string          `json:"filename" db:"filename"`
	FileSize        int64           `json:"file_size" db:"file_size"`
	ContentType     string          `json:"content_type" db:"content_type"`
	S3Key           string          `json:"s3_key" db:"s3_key"`
	ExtractedText   string          `json:"extracted_text,omitempty" db:"extracted_text"`
	DocumentType    *string         `json:"document_type,omitempty" db:"document_type"`
	AnalysisOutcome *string         `json:"analysis_outcome,omitempty" db:"analysis_outcome"`
	TotalTasks      *int            `json:"total_tasks,omitempty" db:"total_tasks"`
	Analysis        *AnalysisResult `json:"analysis,omitempty" db:"-"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	AnalyzedAt      *time.Time      `json:"analyzed_at,omitempty" db:"analyzed_at"`
}

type UploadRequest struct {
	File        []byte
	Filename    string
	ContentType string
}

type UploadResponse struct {
	ID           string       `json:"id"`
	Filename     string       `json:"filename"`
	FileSize     int64        `json:"file_size"`
	ContentType  string       `json:"content_type"`
	DocumentType DocumentType `json:"document_type"`
	TextLength   int          `json:"text_length"`
	CreatedAt    time.Time    `json:"created_at"`
	Message      string       `json:"message"`
}

// AnalyzeTextRequest is the body of a direct text analysis call.
type AnalyzeTextRequest struct {
	Content  string `json:"content"`
	FileName string `json:"fileName"`
}

type AnalysisResponse struct {
	ID         string         `json:"id"`
	Cached     bool           `json:"cached"`
	Result     AnalysisResult `json:"result"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
}
