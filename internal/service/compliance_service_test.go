package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type studentStoreStub struct {
	students map[string]models.Student
	order    []string
	findErr  error
}

func newStudentStoreStub(students ...models.Student) *studentStoreStub {
	s := &studentStoreStub{students: make(map[string]models.Student)}
	for _, st := range students {
		s.students[st.ID] = st
		s.order = append(s.order, st.ID)
	}
	return s
}

func (s *studentStoreStub) FindByID(_ context.Context, id string) (*models.Student, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	st, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (s *studentStoreStub) ListActive(_ context.Context, _ models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(s.order))
	for _, id := range s.order {
		if st := s.students[id]; st.Active {
			out = append(out, st)
		}
	}
	return out, len(out), nil
}

type complianceFixture struct {
	svc       *ComplianceService
	students  *studentStoreStub
	templates *templateStoreStub
	docs      *documentStoreStub
	cache     *cacheRepoStub
}

func newComplianceFixture(docs ...models.DocumentInstance) *complianceFixture {
	f := &complianceFixture{
		students: newStudentStoreStub(
			models.Student{ID: "stu-1", NIS: "1001", FullName: "Ana", Population: "REGULAR", Active: true},
			models.Student{ID: "stu-2", NIS: "1002", FullName: "Beto", Population: "TRANSFER", Active: true},
			models.Student{ID: "stu-3", NIS: "1003", FullName: "Caro", Population: "REGULAR", Active: false},
		),
		templates: newTemplateStoreStub(fixedTemplate("fixed", "Acta"), periodicTemplate("med", "Certificado médico", 180)),
		docs:      newDocumentStoreStub(docs...),
		cache:     newCacheRepoStub(),
	}
	metrics := NewMetricsService()
	f.svc = NewComplianceService(ComplianceServiceParams{
		Students:  f.students,
		Templates: f.templates,
		Documents: f.docs,
		Cache:     NewCacheService(f.cache, metrics, time.Minute, nil, true),
		Metrics:   metrics,
		Now:       func() time.Time { return day0 },
	})
	return f
}

func TestComplianceViewReconcilesAndCaches(t *testing.T) {
	approved := pendingDoc("d1", "fixed")
	approved.State = models.DocumentStateApproved
	f := newComplianceFixture(approved, pendingDoc("d2", "med"))

	view, err := f.svc.View(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Empty(t, view.Warnings)
	require.Len(t, view.Records, 2)
	assert.Equal(t, models.ComplianceStatusApproved, view.Records[0].Status)
	assert.Equal(t, models.ComplianceStatusPending, view.Records[1].Status)
	assert.Equal(t, 50, view.Summary.PercentComplete)
	assert.True(t, f.cache.has(ComplianceCacheKey("stu-1")))

	// served from cache even after the store changes underneath
	f.docs.listErr = errors.New("down")
	cached, err := f.svc.View(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Empty(t, cached.Warnings)
	assert.Equal(t, view.Summary, cached.Summary)
}

func TestComplianceViewDegradesOnStoreFailure(t *testing.T) {
	f := newComplianceFixture(pendingDoc("d1", "fixed"))
	f.docs.listErr = errors.New("connection refused")

	view, err := f.svc.View(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, []string{warnStoreUnavailable}, view.Warnings)
	require.Len(t, view.Records, 2)
	for _, rec := range view.Records {
		assert.Equal(t, models.ComplianceStatusMissing, rec.Status)
	}
	assert.False(t, f.cache.has(ComplianceCacheKey("stu-1")))
}

func TestComplianceViewDegradesOnCatalogFailure(t *testing.T) {
	f := newComplianceFixture(pendingDoc("d1", "fixed"))
	f.templates.listErr = errors.New("timeout")

	view, err := f.svc.View(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, []string{warnCatalogUnavailable}, view.Warnings)
	assert.Empty(t, view.Records)
	assert.Equal(t, 0, view.Summary.PercentComplete)
}

func TestComplianceViewUnknownStudent(t *testing.T) {
	f := newComplianceFixture()

	_, err := f.svc.View(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	f.students.findErr = errors.New("db down")
	_, err = f.svc.View(context.Background(), "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestComplianceAlertsUsesConfiguredLookahead(t *testing.T) {
	approved := pendingDoc("d1", "med")
	approved.State = models.DocumentStateApproved
	approved.ExpiresAt = timePtr(day0.AddDate(0, 0, 10))
	f := newComplianceFixture(approved)

	alerts, warnings, err := f.svc.Alerts(context.Background(), "stu-1", 0)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, alerts)

	alerts, _, err = f.svc.Alerts(context.Background(), "stu-1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeExpiring, alerts[0].Type)
	assert.Equal(t, DefaultAlertLookaheadDays, f.svc.LookaheadDays())
}

func TestCachedViewReportsApprovalThatLapsed(t *testing.T) {
	approved := pendingDoc("d1", "med")
	approved.State = models.DocumentStateApproved
	approved.ExpiresAt = timePtr(day0.Add(time.Hour))
	f := newComplianceFixture(approved)

	view, err := f.svc.View(context.Background(), "stu-1")
	require.NoError(t, err)
	require.True(t, f.cache.has(ComplianceCacheKey("stu-1")))
	assert.Equal(t, 1, view.Summary.ApprovedCount)

	// still inside the cache TTL but past the expiry
	f.svc.now = func() time.Time { return day0.Add(2 * time.Hour) }
	f.docs.listErr = errors.New("down")

	cached, err := f.svc.View(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Empty(t, cached.Warnings)
	var med models.ComplianceRecord
	for _, rec := range cached.Records {
		if rec.TemplateID == "med" {
			med = rec
		}
	}
	assert.Equal(t, models.ComplianceStatusExpired, med.Status)
	assert.Equal(t, 0, cached.Summary.ApprovedCount)
	assert.Equal(t, 1, cached.Summary.ExpiredCount)

	alerts, _, err := f.svc.Alerts(context.Background(), "stu-1", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeExpired, alerts[0].Type)
}

func TestComplianceSummaryAndOverview(t *testing.T) {
	approved := pendingDoc("d1", "fixed")
	approved.State = models.DocumentStateApproved
	f := newComplianceFixture(approved)

	summary, _, err := f.svc.Summary(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ApprovedCount)
	assert.Equal(t, 1, summary.MandatoryOutstanding)

	rows, page, warnings, err := f.svc.Overview(context.Background(), dto.OverviewQuery{})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, rows, 2)
	assert.Equal(t, "stu-1", rows[0].StudentID)
	assert.Equal(t, "stu-2", rows[1].StudentID)
	assert.Equal(t, 0, rows[1].Summary.ApprovedCount)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 2}, page)
}
