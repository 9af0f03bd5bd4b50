package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

var requirementRowColumns = []string{"id", "name", "description", "kind", "validity_days", "mandatory", "applies_to", "created_at", "updated_at"}

func TestRequirementRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequirementRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows(requirementRowColumns).
		AddRow("tpl-1", "Certificado médico", "", "PERIODIC", 180, true, nil, now, now).
		AddRow("tpl-2", "Visa", "", "PERIODIC", 365, true, "FOREIGN", now, now)
	mandatory := true
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, description, kind")).
		WithArgs(models.RequirementKindPeriodic, true, "%cert%").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.RequirementFilter{
		Kind:      models.RequirementKindPeriodic,
		Mandatory: &mandatory,
		Search:    " Cert ",
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].ValidityDays)
	require.Equal(t, 180, *list[0].ValidityDays)
	require.Nil(t, list[0].AppliesTo)
	require.Equal(t, "FOREIGN", *list[1].AppliesTo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequirementRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequirementRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requirement_templates")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tmpl := &models.RequirementTemplate{Name: "Acta de nacimiento", Kind: models.RequirementKindFixed, Mandatory: true}
	require.NoError(t, repo.Create(context.Background(), tmpl))
	require.NotEmpty(t, tmpl.ID)
	require.False(t, tmpl.CreatedAt.IsZero())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, description, kind")).
		WithArgs(tmpl.ID).
		WillReturnRows(sqlmock.NewRows(requirementRowColumns).AddRow(tmpl.ID, tmpl.Name, "", "FIXED", nil, true, nil, now, now))

	found, err := repo.GetByID(context.Background(), tmpl.ID)
	require.NoError(t, err)
	require.Equal(t, models.RequirementKindFixed, found.Kind)
	require.Nil(t, found.ValidityDays)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequirementRepositoryUpdateAndDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequirementRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requirement_templates SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), &models.RequirementTemplate{ID: "missing", Name: "x", Kind: models.RequirementKindFixed})
	require.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requirement_templates SET deleted_at = $2")).
		WithArgs("tpl-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "tpl-1"))

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("tpl-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Delete(context.Background(), "tpl-1"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequirementRepositoryHidesDeletedTemplates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequirementRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM requirement_templates WHERE deleted_at IS NULL ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows(requirementRowColumns))
	list, err := repo.List(context.Background(), models.RequirementFilter{})
	require.NoError(t, err)
	require.Empty(t, list)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("tpl-1").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(context.Background(), "tpl-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletedTemplateKeepsSubmissionHistory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	requirements := NewRequirementRepository(db)
	documents := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requirement_templates SET deleted_at")).
		WithArgs("tpl-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, requirements.Delete(context.Background(), "tpl-1"))

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM document_instances WHERE student_id = $1 ORDER BY")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows(documentRowColumns).
			AddRow("doc-1", "tpl-1", "stu-1", "f1", "a.pdf", "application/pdf", 10, "APPROVED", nil, "rev-1", now, nil, now))
	docs, err := documents.ListByStudent(context.Background(), models.DocumentFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "tpl-1", docs[0].TemplateID)
	require.NoError(t, mock.ExpectationsWereMet())
}
