package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
	"github.com/noah-isme/sma-docs-api/pkg/storage"
)

type submissionStore interface {
	Create(ctx context.Context, doc *models.DocumentInstance) error
	GetByID(ctx context.Context, id string) (*models.DocumentInstance, error)
	ListByStudent(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentInstance, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type blobStore interface {
	Store(fileRef string, r io.Reader) (string, error)
	Open(fileRef string) (*os.File, error)
	Delete(fileRef string) error
}

type downloadSigner interface {
	Generate(documentID, fileRef string) (string, time.Time, error)
	Parse(token string) (*storage.SignedRef, error)
}

// DocumentUpload carries upload metadata and the stream reader.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// DocumentDownload bundles an opened file with the metadata needed to stream it.
type DocumentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// SubmissionServiceConfig holds upload limits and link settings.
type SubmissionServiceConfig struct {
	MaxFileSize        int64
	AllowedMIMEs       []string
	APIPrefix          string
	PublicBaseURL      string
	AlertLookaheadDays int
}

// SubmissionServiceParams groups constructor dependencies.
type SubmissionServiceParams struct {
	Documents submissionStore
	Templates templateReader
	Students  studentFinder
	Blobs     blobStore
	Signer    downloadSigner
	Events    EventEmitter
	Audit     auditLogger
	Cache     *CacheService
	Metrics   *MetricsService
	Logger    *zap.Logger
	Now       func() time.Time
	Config    SubmissionServiceConfig
}

// SubmissionService accepts uploads and serves stored documents.
type SubmissionService struct {
	docs      submissionStore
	templates templateReader
	students  studentFinder
	blobs     blobStore
	signer    downloadSigner
	events    EventEmitter
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
	cfg       SubmissionServiceConfig
	mimeSet   map[string]struct{}
}

// NewSubmissionService constructs the service with defaults.
func NewSubmissionService(params SubmissionServiceParams) *SubmissionService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	cfg := params.Config
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.AlertLookaheadDays <= 0 {
		cfg.AlertLookaheadDays = DefaultAlertLookaheadDays
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &SubmissionService{
		docs:      params.Documents,
		templates: params.Templates,
		students:  params.Students,
		blobs:     params.Blobs,
		signer:    params.Signer,
		events:    params.Events,
		audit:     params.Audit,
		cache:     params.Cache,
		metrics:   params.Metrics,
		logger:    params.Logger,
		now:       params.Now,
		cfg:       cfg,
		mimeSet:   mimeSet,
	}
}

// Submit stores a new PENDING instance for the student. Uploading is only
// allowed while the current record is missing, rejected or expired, or when
// a periodic approval is about to lapse.
func (s *SubmissionService) Submit(ctx context.Context, studentID, actorID string, req dto.SubmitDocumentRequest, upload DocumentUpload) (*models.DocumentInstance, error) {
	templateID := strings.TrimSpace(req.TemplateID)
	if templateID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "templateId is required")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	tmpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requirement")
	}
	if !tmpl.AppliesToPopulation(student.Population) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requirement does not apply to this student")
	}

	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}

	now := s.now()
	if err := s.ensureUploadAllowed(ctx, student, *tmpl, now); err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	fileRef := fmt.Sprintf("%s/%s/%s%s", student.ID, tmpl.ID, docID, fileExtension(upload.Filename, mimeType))
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if _, err := s.blobs.Store(fileRef, upload.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist document file")
	}

	doc := &models.DocumentInstance{
		ID:           docID,
		TemplateID:   tmpl.ID,
		StudentID:    student.ID,
		FileRef:      fileRef,
		OriginalName: filepath.Base(upload.Filename),
		MimeType:     mimeType,
		SizeBytes:    upload.Size,
		State:        models.DocumentStatePending,
		SubmittedAt:  now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		_ = s.blobs.Delete(fileRef)
		if errors.Is(err, repository.ErrPendingExists) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "a submission for this requirement is already pending review")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}

	s.logger.Info("document submitted",
		zap.String("document_id", doc.ID),
		zap.String("template_id", doc.TemplateID),
		zap.String("student_id", doc.StudentID),
		zap.String("actor_id", actorID),
	)
	s.metrics.RecordTransition(string(models.DocumentEventSubmitted))
	emitAudit(ctx, s.audit, s.logger, "submission-service", &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDocumentSubmit,
		Resource:   "document",
		ResourceID: &doc.ID,
		NewValues:  auditJSON(doc),
	})
	_ = s.cache.InvalidateStudent(ctx, doc.StudentID)
	if s.events != nil {
		s.events.Emit(ctx, models.DocumentEvent{
			Type:       models.DocumentEventSubmitted,
			DocumentID: doc.ID,
			TemplateID: doc.TemplateID,
			StudentID:  doc.StudentID,
			ActorID:    actorID,
			State:      doc.State,
			OccurredAt: now,
		})
	}
	return doc, nil
}

// History lists the student's submissions, newest first.
func (s *SubmissionService) History(ctx context.Context, studentID string, query dto.DocumentQuery) ([]models.DocumentInstance, error) {
	filter := models.DocumentFilter{StudentID: studentID, TemplateID: strings.TrimSpace(query.TemplateID)}
	if raw := strings.ToUpper(strings.TrimSpace(query.State)); raw != "" {
		switch state := models.DocumentState(raw); state {
		case models.DocumentStatePending, models.DocumentStateApproved, models.DocumentStateRejected:
			filter.State = state
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "state must be PENDING, APPROVED or REJECTED")
		}
	}
	docs, err := s.docs.ListByStudent(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Get loads a document, letting students see only their own.
func (s *SubmissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.DocumentInstance, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if !actor.CanAccessStudent(doc.StudentID) {
		return nil, appErrors.ErrForbidden
	}
	return doc, nil
}

// DownloadURL signs a short-lived link to the stored file.
func (s *SubmissionService) DownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DownloadURLResponse, error) {
	doc, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	link, expiresAt, err := s.sign(doc)
	if err != nil {
		return nil, err
	}
	return &dto.DownloadURLResponse{DocumentID: doc.ID, DownloadURL: link, ExpiresAt: expiresAt}, nil
}

// SignedURL returns an absolute signed link usable outside the API.
func (s *SubmissionService) SignedURL(doc *models.DocumentInstance) (string, error) {
	link, _, err := s.sign(doc)
	if err != nil {
		return "", err
	}
	return s.cfg.PublicBaseURL + link, nil
}

// Download validates the signed token and opens the file. The token alone
// authorises the download so the link can be handed to the review assistant.
func (s *SubmissionService) Download(ctx context.Context, id, token string) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	ref, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if ref.DocumentID != doc.ID || ref.FileRef != doc.FileRef {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.blobs.Open(doc.FileRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document metadata")
	}
	name := doc.OriginalName
	if name == "" {
		name = filepath.Base(doc.FileRef)
	}
	return &DocumentDownload{File: file, Filename: name, MimeType: doc.MimeType, SizeBytes: info.Size()}, nil
}

func (s *SubmissionService) sign(doc *models.DocumentInstance) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.FileRef)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/documents/%s/download?token=%s", base, doc.ID, url.QueryEscape(token)), expiresAt, nil
}

func (s *SubmissionService) ensureUploadAllowed(ctx context.Context, student *models.Student, tmpl models.RequirementTemplate, now time.Time) error {
	existing, err := s.docs.ListByStudent(ctx, models.DocumentFilter{StudentID: student.ID, TemplateID: tmpl.ID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous submissions")
	}
	records := Reconcile(models.ComplianceSubject{StudentID: student.ID, Population: student.Population},
		[]models.RequirementTemplate{tmpl}, existing, now)
	if len(records) == 0 {
		return nil
	}
	if !UploadAllowed(records[0], s.cfg.AlertLookaheadDays, now) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("requirement is %s, a new upload is not allowed", records[0].Status))
	}
	return nil
}

// UploadAllowed reports whether a new instance may be submitted on top of record.
func UploadAllowed(record models.ComplianceRecord, lookaheadDays int, now time.Time) bool {
	switch record.Status {
	case models.ComplianceStatusMissing, models.ComplianceStatusRejected, models.ComplianceStatusExpired:
		return true
	case models.ComplianceStatusApproved:
		if record.ExpiresAt == nil {
			return false
		}
		return DaysRemaining(*record.ExpiresAt, now) <= lookaheadDays
	default:
		return false
	}
}

func (s *SubmissionService) detectMime(upload DocumentUpload) (string, error) {
	if upload.MimeType != "" && upload.MimeType != "application/octet-stream" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	mt := http.DetectContentType(header[:n])
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = mt[:idx]
	}
	return mt, nil
}

func fileExtension(original, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(original)); ext != "" && len(ext) <= 6 {
		return ext
	}
	switch strings.ToLower(mimeType) {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}
