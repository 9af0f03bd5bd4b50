package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	"github.com/noah-isme/sma-docs-api/pkg/advisor"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type reviewDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.DocumentInstance, error)
	UpdateReview(ctx context.Context, params repository.ReviewParams) error
	DeletePending(ctx context.Context, id, studentID string) error
}

type templateReader interface {
	GetByID(ctx context.Context, id string) (*models.RequirementTemplate, error)
}

type blobDeleter interface {
	Delete(fileRef string) error
}

// ReviewOracle returns non-binding review suggestions.
type ReviewOracle interface {
	Analyze(ctx context.Context, req advisor.AnalyzeRequest) (*advisor.Suggestion, error)
}

// DocumentLinker produces a URL the oracle can fetch the file from.
type DocumentLinker interface {
	SignedURL(doc *models.DocumentInstance) (string, error)
}

// ReviewService runs the PENDING -> APPROVED | REJECTED state machine.
type ReviewService struct {
	docs      reviewDocumentStore
	templates templateReader
	blobs     blobDeleter
	oracle    ReviewOracle
	linker    DocumentLinker
	events    EventEmitter
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// ReviewServiceParams groups constructor dependencies.
type ReviewServiceParams struct {
	Documents reviewDocumentStore
	Templates templateReader
	Blobs     blobDeleter
	Oracle    ReviewOracle
	Linker    DocumentLinker
	Events    EventEmitter
	Audit     auditLogger
	Cache     *CacheService
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewReviewService constructs the service. Oracle may be nil, in which case
// suggestions report the assistant as unavailable.
func NewReviewService(params ReviewServiceParams) *ReviewService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	return &ReviewService{
		docs:      params.Documents,
		templates: params.Templates,
		blobs:     params.Blobs,
		oracle:    params.Oracle,
		linker:    params.Linker,
		events:    params.Events,
		audit:     params.Audit,
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: params.Validator,
		logger:    params.Logger,
		now:       params.Now,
	}
}

// OutcomeForSuggestion maps an oracle verb onto the state it would produce.
func OutcomeForSuggestion(outcome models.SuggestedOutcome) (models.DocumentState, error) {
	switch models.SuggestedOutcome(strings.ToUpper(strings.TrimSpace(string(outcome)))) {
	case models.SuggestedOutcomeApprove:
		return models.DocumentStateApproved, nil
	case models.SuggestedOutcomeReject:
		return models.DocumentStateRejected, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported suggested outcome %q", outcome))
	}
}

// ExpiryFor returns when an approval granted at approvedAt lapses; nil for
// fixed templates.
func ExpiryFor(tmpl models.RequirementTemplate, approvedAt time.Time) *time.Time {
	if !tmpl.IsPeriodic() {
		return nil
	}
	expires := approvedAt.AddDate(0, 0, *tmpl.ValidityDays)
	return &expires
}

// SubmitReview applies a reviewer decision.
func (s *ReviewService) SubmitReview(ctx context.Context, id, actorID string, action dto.ReviewAction) (*models.DocumentInstance, error) {
	switch models.DocumentState(strings.ToUpper(strings.TrimSpace(string(action.Outcome)))) {
	case models.DocumentStateApproved:
		return s.Approve(ctx, id, actorID, action.Comment)
	case models.DocumentStateRejected:
		return s.Reject(ctx, id, actorID, action.Comment)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "outcome must be APPROVED or REJECTED")
	}
}

// Approve accepts a pending document. Periodic templates get an expiry of
// approval time plus validity days.
func (s *ReviewService) Approve(ctx context.Context, id, actorID, comment string) (*models.DocumentInstance, error) {
	if err := s.validateAction(dto.ReviewAction{Outcome: models.DocumentStateApproved, Comment: comment}); err != nil {
		return nil, err
	}
	doc, err := s.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.templates.GetByID(ctx, doc.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requirement no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requirement")
	}
	now := s.now()
	return s.decide(ctx, doc, repository.ReviewParams{
		ID:         doc.ID,
		State:      models.DocumentStateApproved,
		Comment:    optionalComment(comment),
		ReviewedBy: actorID,
		ReviewedAt: now,
		ExpiresAt:  ExpiryFor(*tmpl, now),
	})
}

// Reject refuses a pending document. A non-blank comment is mandatory and is
// checked before anything is read or written.
func (s *ReviewService) Reject(ctx context.Context, id, actorID, comment string) (*models.DocumentInstance, error) {
	reason := optionalComment(comment)
	if reason == nil {
		return nil, appErrors.ErrMissingComment
	}
	if err := s.validateAction(dto.ReviewAction{Outcome: models.DocumentStateRejected, Comment: comment}); err != nil {
		return nil, err
	}
	doc, err := s.loadPending(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, doc, repository.ReviewParams{
		ID:         doc.ID,
		State:      models.DocumentStateRejected,
		Comment:    reason,
		ReviewedBy: actorID,
		ReviewedAt: s.now(),
	})
}

// Suggest asks the oracle for a recommendation on the document.
func (s *ReviewService) Suggest(ctx context.Context, id string) (*models.AISuggestion, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.oracle == nil {
		return nil, appErrors.Clone(appErrors.ErrOracleUnavailable, "review assistant is not configured")
	}

	req := advisor.AnalyzeRequest{
		DocumentID: doc.ID,
		TemplateID: doc.TemplateID,
		FileName:   doc.OriginalName,
		MimeType:   doc.MimeType,
	}
	if tmpl, err := s.templates.GetByID(ctx, doc.TemplateID); err == nil {
		req.TemplateName = tmpl.Name
	}
	if s.linker != nil {
		if link, err := s.linker.SignedURL(doc); err == nil {
			req.DownloadURL = link
		} else {
			s.logger.Warn("failed to sign document link for advisor", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}

	start := time.Now()
	raw, err := s.oracle.Analyze(ctx, req)
	s.metrics.RecordOracleCall(err == nil, time.Since(start))
	if err != nil {
		s.logger.Warn("review assistant failed", zap.String("document_id", doc.ID), zap.Error(err))
		return nil, appErrors.Cause(appErrors.ErrOracleUnavailable, err)
	}
	return &models.AISuggestion{
		DocumentID:       doc.ID,
		SuggestedOutcome: models.SuggestedOutcome(raw.SuggestedOutcome),
		Confidence:       raw.Confidence,
		Reasons:          raw.Reasons,
		SuggestedComment: strings.TrimSpace(raw.SuggestedComment),
	}, nil
}

// ApplySuggestion turns a suggestion into the equivalent manual decision.
// Without a suggestion a fresh one is requested from the oracle.
func (s *ReviewService) ApplySuggestion(ctx context.Context, id, actorID string, suggestion *models.AISuggestion, overrideComment string) (*models.DocumentInstance, error) {
	if err := s.validator.Struct(dto.ApplySuggestionRequest{Suggestion: suggestion, Comment: overrideComment}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suggestion payload")
	}
	if suggestion == nil {
		fetched, err := s.Suggest(ctx, id)
		if err != nil {
			return nil, err
		}
		suggestion = fetched
	}
	if suggestion.DocumentID != "" && suggestion.DocumentID != id {
		return nil, appErrors.Clone(appErrors.ErrValidation, "suggestion belongs to another document")
	}
	outcome, err := OutcomeForSuggestion(suggestion.SuggestedOutcome)
	if err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(overrideComment)
	if comment == "" {
		comment = suggestion.SuggestedComment
	}
	if outcome == models.DocumentStateApproved {
		return s.Approve(ctx, id, actorID, comment)
	}
	return s.Reject(ctx, id, actorID, comment)
}

func (s *ReviewService) validateAction(action dto.ReviewAction) error {
	if err := s.validator.Struct(action); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	return nil
}

// Withdraw lets a student retract their own pending submission.
func (s *ReviewService) Withdraw(ctx context.Context, id, studentID string) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if doc.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner can withdraw a document")
	}
	if doc.State != models.DocumentStatePending {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only pending documents can be withdrawn")
	}
	if err := s.docs.DeletePending(ctx, doc.ID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "document was reviewed before it could be withdrawn")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw document")
	}
	if s.blobs != nil && doc.FileRef != "" {
		if err := s.blobs.Delete(doc.FileRef); err != nil {
			s.logger.Warn("failed to delete withdrawn file", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	s.afterTransition(ctx, doc, models.DocumentEventWithdrawn, studentID, models.AuditActionDocumentWithdraw)
	return nil
}

func (s *ReviewService) decide(ctx context.Context, doc *models.DocumentInstance, params repository.ReviewParams) (*models.DocumentInstance, error) {
	if err := s.docs.UpdateReview(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "document was already reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store review")
	}
	reviewedAt := params.ReviewedAt
	reviewer := params.ReviewedBy
	doc.State = params.State
	doc.ReviewerComment = params.Comment
	doc.ReviewedBy = &reviewer
	doc.ReviewedAt = &reviewedAt
	doc.ExpiresAt = params.ExpiresAt

	eventType := models.DocumentEventApproved
	if params.State == models.DocumentStateRejected {
		eventType = models.DocumentEventRejected
	}
	s.afterTransition(ctx, doc, eventType, reviewer, models.AuditActionDocumentReview)
	return doc, nil
}

func (s *ReviewService) afterTransition(ctx context.Context, doc *models.DocumentInstance, eventType models.DocumentEventType, actorID, auditAction string) {
	s.logger.Info("document transition",
		zap.String("document_id", doc.ID),
		zap.String("event", string(eventType)),
		zap.String("state", string(doc.State)),
		zap.String("actor_id", actorID),
	)
	s.metrics.RecordTransition(string(eventType))
	emitAudit(ctx, s.audit, s.logger, "review-service", &models.AuditLog{
		UserID:     &actorID,
		Action:     auditAction,
		Resource:   "document",
		ResourceID: &doc.ID,
		NewValues:  auditJSON(doc),
	})
	_ = s.cache.InvalidateStudent(ctx, doc.StudentID)
	if s.events != nil {
		s.events.Emit(ctx, models.DocumentEvent{
			Type:       eventType,
			DocumentID: doc.ID,
			TemplateID: doc.TemplateID,
			StudentID:  doc.StudentID,
			ActorID:    actorID,
			State:      doc.State,
			Comment:    doc.ReviewerComment,
			ExpiresAt:  doc.ExpiresAt,
			OccurredAt: s.now(),
		})
	}
}

func (s *ReviewService) load(ctx context.Context, id string) (*models.DocumentInstance, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *ReviewService) loadPending(ctx context.Context, id string) (*models.DocumentInstance, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.State != models.DocumentStatePending {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("document is %s, only pending documents can be reviewed", strings.ToLower(string(doc.State))))
	}
	return doc, nil
}

func optionalComment(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
