package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

const (
	warnCatalogUnavailable = "requirement catalog unavailable; showing no requirements"
	warnStoreUnavailable   = "submission store unavailable; all requirements shown as missing"
	overviewConcurrency    = 4
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type templateLister interface {
	List(ctx context.Context, filter models.RequirementFilter) ([]models.RequirementTemplate, error)
}

type documentLister interface {
	ListByStudent(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentInstance, error)
}

// ComplianceServiceConfig tunes view generation.
type ComplianceServiceConfig struct {
	AlertLookaheadDays int
	CacheTTL           time.Duration
}

// ComplianceServiceParams groups constructor dependencies.
type ComplianceServiceParams struct {
	Students  studentReader
	Templates templateLister
	Documents documentLister
	Cache     *CacheService
	Metrics   *MetricsService
	Logger    *zap.Logger
	Now       func() time.Time
	Config    ComplianceServiceConfig
}

// ComplianceService composes the per-student compliance view.
type ComplianceService struct {
	students  studentReader
	templates templateLister
	documents documentLister
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
	cfg       ComplianceServiceConfig
}

// NewComplianceService constructs the service.
func NewComplianceService(params ComplianceServiceParams) *ComplianceService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	if params.Config.AlertLookaheadDays <= 0 {
		params.Config.AlertLookaheadDays = DefaultAlertLookaheadDays
	}
	return &ComplianceService{
		students:  params.Students,
		templates: params.Templates,
		documents: params.Documents,
		cache:     params.Cache,
		metrics:   params.Metrics,
		logger:    params.Logger,
		now:       params.Now,
		cfg:       params.Config,
	}
}

// LookaheadDays returns the configured default alert window.
func (s *ComplianceService) LookaheadDays() int {
	return s.cfg.AlertLookaheadDays
}

// View returns the student's records and summary. Catalog or store failures
// degrade the result and are reported in view.Warnings; degraded views are
// never cached.
func (s *ComplianceService) View(ctx context.Context, studentID string) (*models.ComplianceView, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.viewFor(ctx, student)
}

// Summary returns only the aggregate counts.
func (s *ComplianceService) Summary(ctx context.Context, studentID string) (*models.ComplianceSummary, []string, error) {
	view, err := s.View(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	summary := view.Summary
	return &summary, view.Warnings, nil
}

// Alerts derives dashboard alerts; lookaheadDays <= 0 uses the configured window.
func (s *ComplianceService) Alerts(ctx context.Context, studentID string, lookaheadDays int) ([]models.Alert, []string, error) {
	view, err := s.View(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	if lookaheadDays <= 0 {
		lookaheadDays = s.cfg.AlertLookaheadDays
	}
	return BuildAlerts(view.Records, lookaheadDays, s.now()), view.Warnings, nil
}

// Overview summarises every active student on the requested page.
func (s *ComplianceService) Overview(ctx context.Context, query dto.OverviewQuery) ([]models.StudentComplianceOverview, *models.Pagination, []string, error) {
	filter := models.StudentFilter{Page: query.Page, PageSize: query.PageSize}
	students, total, err := s.students.ListActive(ctx, filter)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	rows := make([]models.StudentComplianceOverview, len(students))
	var (
		mu       sync.Mutex
		warnings []string
		seen     = make(map[string]struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i := range students {
		i := i
		g.Go(func() error {
			student := students[i]
			view, err := s.viewFor(gctx, &student)
			if err != nil {
				return err
			}
			rows[i] = models.StudentComplianceOverview{
				StudentID: student.ID,
				NIS:       student.NIS,
				FullName:  student.FullName,
				Summary:   view.Summary,
			}
			mu.Lock()
			for _, w := range view.Warnings {
				if _, ok := seen[w]; !ok {
					seen[w] = struct{}{}
					warnings = append(warnings, w)
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, warnings, nil
}

func (s *ComplianceService) viewFor(ctx context.Context, student *models.Student) (*models.ComplianceView, error) {
	key := ComplianceCacheKey(student.ID)
	var cached models.ComplianceView
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		refreshStatuses(&cached, s.now())
		return &cached, nil
	}

	templates, instances, warnings := s.fetch(ctx, student.ID)
	now := s.now()
	records := Reconcile(models.ComplianceSubject{StudentID: student.ID, Population: student.Population}, templates, instances, now)
	view := &models.ComplianceView{
		StudentID: student.ID,
		Records:   records,
		Summary:   Summarize(records),
		Generated: now,
		Warnings:  warnings,
	}
	if len(warnings) == 0 {
		_ = s.cache.Set(ctx, key, view, s.cfg.CacheTTL)
	}
	return view, nil
}

// refreshStatuses re-derives time-dependent statuses of a cached view so an
// approval that lapses within the cache TTL is reported as expired.
func refreshStatuses(view *models.ComplianceView, now time.Time) {
	changed := false
	for i := range view.Records {
		record := &view.Records[i]
		if record.Document == nil {
			continue
		}
		if status := statusForInstance(record.Document, now); status != record.Status {
			record.Status = status
			changed = true
		}
	}
	if changed {
		view.Summary = Summarize(view.Records)
	}
}

// fetch loads catalog and submissions concurrently. Neither failure aborts
// the other; each becomes an empty collection plus a warning.
func (s *ComplianceService) fetch(ctx context.Context, studentID string) ([]models.RequirementTemplate, []models.DocumentInstance, []string) {
	var (
		templates            []models.RequirementTemplate
		instances            []models.DocumentInstance
		catalogErr, storeErr error
		g                    errgroup.Group
	)
	g.Go(func() error {
		templates, catalogErr = s.templates.List(ctx, models.RequirementFilter{})
		return nil
	})
	g.Go(func() error {
		instances, storeErr = s.documents.ListByStudent(ctx, models.DocumentFilter{StudentID: studentID})
		return nil
	})
	_ = g.Wait()

	var warnings []string
	if catalogErr != nil {
		templates = nil
		warnings = append(warnings, warnCatalogUnavailable)
		s.metrics.RecordDegradedFetch("catalog")
		s.logger.Warn("requirement catalog fetch failed", zap.String("student_id", studentID), zap.Error(catalogErr))
	}
	if storeErr != nil {
		instances = nil
		warnings = append(warnings, warnStoreUnavailable)
		s.metrics.RecordDegradedFetch("store")
		s.logger.Warn("submission store fetch failed", zap.String("student_id", studentID), zap.Error(storeErr))
	}
	return templates, instances, warnings
}

func (s *ComplianceService) loadStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}
