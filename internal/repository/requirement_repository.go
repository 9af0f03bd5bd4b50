package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

const requirementColumns = `id, name, description, kind, validity_days, mandatory, applies_to, created_at, updated_at`

// RequirementRepository persists the requirement catalog.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository constructs the repository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// List returns live templates ordered by name, then id.
func (r *RequirementRepository) List(ctx context.Context, filter models.RequirementFilter) ([]models.RequirementTemplate, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT " + requirementColumns + " FROM requirement_templates")
	args := make([]interface{}, 0, 3)
	conditions := []string{"deleted_at IS NULL"}

	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Mandatory != nil {
		args = append(args, *filter.Mandatory)
		conditions = append(conditions, fmt.Sprintf("mandatory = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)))
	}
	builder.WriteString(" WHERE ")
	builder.WriteString(strings.Join(conditions, " AND "))
	builder.WriteString(" ORDER BY name ASC, id ASC")

	var templates []models.RequirementTemplate
	if err := r.db.SelectContext(ctx, &templates, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list requirement templates: %w", err)
	}
	return templates, nil
}

// GetByID fetches one live template. Missing or deleted rows surface as sql.ErrNoRows.
func (r *RequirementRepository) GetByID(ctx context.Context, id string) (*models.RequirementTemplate, error) {
	query := "SELECT " + requirementColumns + " FROM requirement_templates WHERE id = $1 AND deleted_at IS NULL"
	var tmpl models.RequirementTemplate
	if err := r.db.GetContext(ctx, &tmpl, query, id); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// Create inserts a template, assigning id and timestamps when absent.
func (r *RequirementRepository) Create(ctx context.Context, tmpl *models.RequirementTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = now
	}
	tmpl.UpdatedAt = now
	const query = `INSERT INTO requirement_templates
	(id, name, description, kind, validity_days, mandatory, applies_to, created_at, updated_at)
	VALUES (:id, :name, :description, :kind, :validity_days, :mandatory, :applies_to, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tmpl); err != nil {
		return fmt.Errorf("create requirement template: %w", err)
	}
	return nil
}

// Update replaces the mutable columns of a template.
func (r *RequirementRepository) Update(ctx context.Context, tmpl *models.RequirementTemplate) error {
	tmpl.UpdatedAt = time.Now().UTC()
	const query = `UPDATE requirement_templates SET name = :name, description = :description, kind = :kind,
	validity_days = :validity_days, mandatory = :mandatory, applies_to = :applies_to, updated_at = :updated_at
	WHERE id = :id AND deleted_at IS NULL`
	result, err := r.db.NamedExecContext(ctx, query, tmpl)
	if err != nil {
		return fmt.Errorf("update requirement template: %w", err)
	}
	return expectAffected(result, "update requirement template")
}

// Delete retires a template by stamping deleted_at. The row is kept so its
// document instances stay readable as orphans.
func (r *RequirementRepository) Delete(ctx context.Context, id string) error {
	const query = `UPDATE requirement_templates SET deleted_at = $2, updated_at = $2
	WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete requirement template: %w", err)
	}
	return expectAffected(result, "delete requirement template")
}
