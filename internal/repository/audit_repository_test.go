package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
)

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "rev-1"
	entry := &models.AuditLog{UserID: &userID, Action: models.AuditActionDocumentReview, Resource: "document"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest map[string]string
	require.Error(t, repo.Get(context.Background(), "k", &dest))
	require.NoError(t, repo.Set(context.Background(), "k", map[string]string{"a": "b"}, 0))
	require.NoError(t, repo.Delete(context.Background(), "k"))
	require.NoError(t, repo.DeleteByPattern(context.Background(), "compliance:*"))
	require.NoError(t, repo.Ping(context.Background()))
	require.NoError(t, repo.Close())
}
