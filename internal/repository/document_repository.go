package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

// ErrPendingExists reports that the student already has a pending submission
// for the template; enforced by a partial unique index.
var ErrPendingExists = errors.New("pending submission already exists")

const uniqueViolation = "23505"

const documentColumns = `id, template_id, student_id, file_ref, original_name, mime_type, size_bytes, state,
       reviewer_comment, reviewed_by, reviewed_at, expires_at, submitted_at`

// DocumentRepository persists document instances.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// ListByStudent returns every instance of a student, newest first.
func (r *DocumentRepository) ListByStudent(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentInstance, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT " + documentColumns + " FROM document_instances WHERE student_id = $1")
	args := []interface{}{filter.StudentID}
	if filter.TemplateID != "" {
		args = append(args, filter.TemplateID)
		builder.WriteString(fmt.Sprintf(" AND template_id = $%d", len(args)))
	}
	if filter.State != "" {
		args = append(args, filter.State)
		builder.WriteString(fmt.Sprintf(" AND state = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY submitted_at DESC, id DESC")

	var docs []models.DocumentInstance
	if err := r.db.SelectContext(ctx, &docs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list document instances: %w", err)
	}
	return docs, nil
}

// GetByID fetches one instance. Missing rows surface as sql.ErrNoRows.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.DocumentInstance, error) {
	query := "SELECT " + documentColumns + " FROM document_instances WHERE id = $1"
	var doc models.DocumentInstance
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Create inserts a new PENDING instance.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.DocumentInstance) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.SubmittedAt.IsZero() {
		doc.SubmittedAt = time.Now().UTC()
	}
	doc.State = models.DocumentStatePending
	const query = `INSERT INTO document_instances
	(id, template_id, student_id, file_ref, original_name, mime_type, size_bytes, state, reviewer_comment, reviewed_by, reviewed_at, expires_at, submitted_at)
	VALUES (:id, :template_id, :student_id, :file_ref, :original_name, :mime_type, :size_bytes, :state, :reviewer_comment, :reviewed_by, :reviewed_at, :expires_at, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrPendingExists
		}
		return fmt.Errorf("create document instance: %w", err)
	}
	return nil
}

// ReviewParams groups the columns written by a review decision.
type ReviewParams struct {
	ID         string
	State      models.DocumentState
	Comment    *string
	ReviewedBy string
	ReviewedAt time.Time
	ExpiresAt  *time.Time
}

// UpdateReview writes a decision only while the instance is still PENDING.
// A lost race or an already reviewed instance yields sql.ErrNoRows.
func (r *DocumentRepository) UpdateReview(ctx context.Context, params ReviewParams) error {
	query := fmt.Sprintf(`UPDATE document_instances
	SET state = :state, reviewer_comment = :reviewer_comment, reviewed_by = :reviewed_by,
	    reviewed_at = :reviewed_at, expires_at = :expires_at
	WHERE id = :id AND state = '%s'`, models.DocumentStatePending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"state":            params.State,
		"reviewer_comment": params.Comment,
		"reviewed_by":      params.ReviewedBy,
		"reviewed_at":      params.ReviewedAt,
		"expires_at":       params.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("update document review: %w", err)
	}
	return expectAffected(result, "update document review")
}

// DeletePending hard-deletes an instance owned by the student while PENDING.
func (r *DocumentRepository) DeletePending(ctx context.Context, id, studentID string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM document_instances WHERE id = $1 AND student_id = $2 AND state = $3",
		id, studentID, models.DocumentStatePending)
	if err != nil {
		return fmt.Errorf("delete pending document: %w", err)
	}
	return expectAffected(result, "delete pending document")
}
