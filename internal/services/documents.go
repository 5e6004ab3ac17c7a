package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BerylCAtieno/document-task-extractor/internal/analyzer"
	"github.com/BerylCAtieno/document-task-extractor/internal/extractor"
	"github.com/BerylCAtieno/document-task-extractor/internal/models"
	"github.com/BerylCAtieno/document-task-extractor/internal/preprocess"
	"github.com/BerylCAtieno/document-task-extractor/internal/repository"
	"github.com/BerylCAtieno/document-task-extractor/internal/storage"
	"github.com/BerylCAtieno/document-task-extractor/internal/utils"
)

type DocumentService interface {
	UploadDocument(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error)
	AnalyzeDocument(ctx context.Context, id string) (*models.AnalysisResponse, error)
	AnalyzeText(ctx context.Context, req *models.AnalyzeTextRequest) (*models.AnalysisResult, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetAnalysis(ctx context.Context, id string) (*models.AnalysisResponse, error)
}

type documentService struct {
	repo     repository.Repository
	storage  storage.Storage
	analyzer analyzer.Analyzer
	logger   *utils.Logger
}

func NewService(repo repository.Repository, store storage.Storage, a analyzer.Analyzer, logger *utils.Logger) DocumentService {
	return &documentService{
		repo:     repo,
		storage:  store,
		analyzer: a,
		logger:   logger,
	}
}

func (s *documentService) UploadDocument(ctx context.Context, req *models.UploadRequest) (*models.UploadResponse, error) {
	docID := utils.GenerateID()

	extractedText, format, err := extractor.Extract(req.File, req.Filename)
	if errors.Is(err, extractor.ErrUnsupportedFormat) {
		s.logger.Warn("Unsupported content type", "content_type", req.ContentType, "filename", req.Filename, "error", err)
		return nil, utils.NewBadRequestError("Unsupported file type. Only PDF, DOCX and TXT are allowed")
	}
	if err != nil {
		s.logger.Error("Failed to extract text", "error", err, "format", format, "filename", req.Filename)
		return nil, utils.NewInternalError(fmt.Sprintf("Failed to extract text from document: %v", err))
	}

	if strings.TrimSpace(extractedText) == "" {
		s.logger.Warn("No text extracted from document", "filename", req.Filename)
		return nil, utils.NewBadRequestError("No text could be extracted from the document. The file may be empty or corrupted")
	}

	contentType := contentTypeFor(format)
	docType := preprocess.Classify(preprocess.Clean(extractedText))
	docTypeStr := string(docType)

	s3Key := storage.ObjectKey(docID, req.Filename)
	if err := s.storage.Upload(ctx, s3Key, req.File, contentType); err != nil {
		s.logger.Error("Failed to upload to S3", "error", err, "s3_key", s3Key)
		return nil, utils.NewInternalError("Failed to store document")
	}

	now := time.Now()
	doc := &models.Document{
		ID:            docID,
		Filename:      req.Filename,
		FileSize:      int64(len(req.File)),
		ContentType:   contentType,
		S3Key:         s3Key,
		ExtractedText: extractedText,
		DocumentType:  &docTypeStr,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		s.logger.Error("Failed to save document to database", "error", err, "doc_id", docID)
		if delErr := s.storage.Delete(ctx, s3Key); delErr != nil {
			s.logger.Warn("Failed to remove orphaned upload", "error", delErr, "s3_key", s3Key)
		}
		return nil, utils.NewInternalError("Failed to save document metadata")
	}

	s.logger.Info("Document uploaded successfully",
		"id", docID,
		"filename", req.Filename,
		"content_type", contentType,
		"document_type", docTypeStr,
		"text_length", len(extractedText))

	return &models.UploadResponse{
		ID:           docID,
		Filename:     req.Filename,
		FileSize:     doc.FileSize,
		ContentType:  contentType,
		DocumentType: docType,
		TextLength:   len(extractedText),
		CreatedAt:    now,
		Message:      "Document uploaded successfully. Use /documents/{id}/analyze to extract tasks.",
	}, nil
}

// AnalyzeDocument returns the stored analysis when there is one. Failed runs
// are returned but not stored, so the next request tries again.
func (s *documentService) AnalyzeDocument(ctx context.Context, id string) (*models.AnalysisResponse, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	cached, err := s.repo.GetAnalysis(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load stored analysis", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve analysis")
	}
	if cached != nil {
		s.logger.Info("Document already analyzed, returning cached results", "id", id)
		return analysisResponse(doc, cached, true), nil
	}

	text, err := s.documentText(ctx, doc)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Starting document analysis", "id", id, "text_length", len(text))
	result := s.analyzer.AnalyzeDocument(ctx, text, doc.Filename)

	if result.AnalysisOutcome == models.OutcomeFailure {
		s.logger.Warn("Document analysis failed, result not stored",
			"id", id,
			"message", result.OutcomeMessage)
		return analysisResponse(doc, &result, false), nil
	}

	if err := s.repo.SaveAnalysis(ctx, id, &result); err != nil {
		s.logger.Error("Failed to save analysis", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to save analysis results")
	}

	s.logger.Info("Document analyzed successfully",
		"id", id,
		"outcome", string(result.AnalysisOutcome),
		"total_tasks", result.TotalTasks,
		"groups", len(result.Groups))

	return analysisResponse(doc, &result, false), nil
}

// documentText falls back to re-extracting the stored original when the row
// has no text.
func (s *documentService) documentText(ctx context.Context, doc *models.Document) (string, error) {
	if strings.TrimSpace(doc.ExtractedText) != "" {
		return doc.ExtractedText, nil
	}

	data, err := s.storage.Download(ctx, doc.S3Key)
	if err != nil {
		s.logger.Error("Failed to download original document", "error", err, "s3_key", doc.S3Key)
		return "", utils.NewInternalError("Failed to retrieve document content")
	}

	text, _, err := extractor.Extract(data, doc.Filename)
	if err != nil {
		s.logger.Error("Failed to re-extract text", "error", err, "id", doc.ID)
		return "", utils.NewInternalError("Failed to extract text from document")
	}

	doc.ExtractedText = text
	if err := s.repo.Update(ctx, doc); err != nil {
		s.logger.Warn("Failed to store re-extracted text", "error", err, "id", doc.ID)
	}
	return text, nil
}

func (s *documentService) AnalyzeText(ctx context.Context, req *models.AnalyzeTextRequest) (*models.AnalysisResult, error) {
	s.logger.Info("Starting text analysis", "file", req.FileName, "text_length", len(req.Content))
	result := s.analyzer.AnalyzeDocument(ctx, req.Content, req.FileName)
	return &result, nil
}

func (s *documentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve document")
	}
	if doc == nil {
		return nil, utils.NewNotFoundError("Document not found")
	}

	return doc, nil
}

func (s *documentService) GetAnalysis(ctx context.Context, id string) (*models.AnalysisResponse, error) {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.GetAnalysis(ctx, id)
	if err != nil {
		s.logger.Error("Failed to load stored analysis", "error", err, "id", id)
		return nil, utils.NewInternalError("Failed to retrieve analysis")
	}
	if result == nil {
		return nil, utils.NewNotFoundError("Document has not been analyzed yet")
	}

	return analysisResponse(doc, result, true), nil
}

func analysisResponse(doc *models.Document, result *models.AnalysisResult, cached bool) *models.AnalysisResponse {
	analyzedAt := result.ProcessedAt
	if cached && doc.AnalyzedAt != nil {
		analyzedAt = *doc.AnalyzedAt
	}
	return &models.AnalysisResponse{
		ID:         doc.ID,
		Cached:     cached,
		Result:     *result,
		AnalyzedAt: analyzedAt,
	}
}

func contentTypeFor(format extractor.Format) string {
	switch format {
	case extractor.FormatPDF:
		return extractor.MIMEPDF
	case extractor.FormatDOCX:
		return extractor.MIMEDOCX
	default:
		return extractor.MIMETXT
	}
}
