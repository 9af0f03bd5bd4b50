package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type requirementStore interface {
	List(ctx context.Context, filter models.RequirementFilter) ([]models.RequirementTemplate, error)
	GetByID(ctx context.Context, id string) (*models.RequirementTemplate, error)
	Create(ctx context.Context, tmpl *models.RequirementTemplate) error
	Update(ctx context.Context, tmpl *models.RequirementTemplate) error
	Delete(ctx context.Context, id string) error
}

// CatalogService manages requirement templates.
type CatalogService struct {
	repo      requirementStore
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(repo requirementStore, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns the catalog.
func (s *CatalogService) List(ctx context.Context, query dto.RequirementQuery) ([]models.RequirementTemplate, error) {
	filter := models.RequirementFilter{
		Kind:      models.RequirementKind(strings.ToUpper(strings.TrimSpace(string(query.Kind)))),
		Mandatory: query.Mandatory,
		Search:    query.Search,
	}
	templates, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requirements")
	}
	return templates, nil
}

// Get returns one template.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.RequirementTemplate, error) {
	tmpl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requirement")
	}
	return tmpl, nil
}

// Create validates and stores a new template.
func (s *CatalogService) Create(ctx context.Context, req dto.UpsertRequirementRequest, actorID string) (*models.RequirementTemplate, error) {
	tmpl, err := s.buildTemplate(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, tmpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create requirement")
	}
	s.afterChange(ctx, models.AuditActionRequirementCreate, actorID, tmpl.ID, nil, tmpl)
	return tmpl, nil
}

// Update replaces a template's definition. Existing approvals keep their
// stored expiry; new validity applies to future approvals only.
func (s *CatalogService) Update(ctx context.Context, id string, req dto.UpsertRequirementRequest, actorID string) (*models.RequirementTemplate, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tmpl, err := s.buildTemplate(req)
	if err != nil {
		return nil, err
	}
	tmpl.ID = current.ID
	tmpl.CreatedAt = current.CreatedAt
	if err := s.repo.Update(ctx, tmpl); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update requirement")
	}
	s.afterChange(ctx, models.AuditActionRequirementUpdate, actorID, tmpl.ID, current, tmpl)
	return tmpl, nil
}

// Delete retires a template. Its submissions stay in history as orphans.
func (s *CatalogService) Delete(ctx context.Context, id, actorID string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete requirement")
	}
	s.afterChange(ctx, models.AuditActionRequirementDelete, actorID, id, nil, nil)
	return nil
}

func (s *CatalogService) buildTemplate(req dto.UpsertRequirementRequest) (*models.RequirementTemplate, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Kind = models.RequirementKind(strings.ToUpper(strings.TrimSpace(string(req.Kind))))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	switch req.Kind {
	case models.RequirementKindPeriodic:
		if req.ValidityDays == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "validityDays is required for periodic requirements")
		}
	case models.RequirementKindFixed:
		if req.ValidityDays != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "validityDays is only allowed for periodic requirements")
		}
	}
	tmpl := &models.RequirementTemplate{
		Name:         req.Name,
		Description:  strings.TrimSpace(req.Description),
		Kind:         req.Kind,
		ValidityDays: req.ValidityDays,
		Mandatory:    req.Mandatory,
	}
	if req.AppliesTo != nil {
		if population := strings.ToUpper(strings.TrimSpace(*req.AppliesTo)); population != "" {
			tmpl.AppliesTo = &population
		}
	}
	return tmpl, nil
}

func (s *CatalogService) afterChange(ctx context.Context, action, actorID, id string, before, after *models.RequirementTemplate) {
	var oldValues, newValues []byte
	if before != nil {
		oldValues = auditJSON(before)
	}
	if after != nil {
		newValues = auditJSON(after)
	}
	emitAudit(ctx, s.audit, s.logger, "catalog-service", &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "requirement",
		ResourceID: &id,
		OldValues:  oldValues,
		NewValues:  newValues,
	})
	// Applicability and validity feed every cached view.
	_ = s.cache.InvalidateAll(ctx)
}
