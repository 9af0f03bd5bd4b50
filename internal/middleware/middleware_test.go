package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/models"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

type auditWriterStub struct {
	logs []*models.AuditLog
}

func (a *auditWriterStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type observerStub struct {
	paths []string
}

func (o *observerStub) ObserveHTTPRequest(_, path string, _ int, _ time.Duration) {
	o.paths = append(o.paths, path)
}

func newRouter(claims *models.JWTClaims, guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(validatorStub{claims: claims})}, guards...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/students/:studentId/compliance", handlers...)
	return r
}

func serve(r http.Handler, path, token string) int {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	r := newRouter(&models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/students/stu-1/compliance", ""))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "/students/stu-1/compliance", "bad"))
	assert.Equal(t, http.StatusOK, serve(r, "/students/stu-1/compliance", "good"))
}

func TestRBACSelfMatchesStudentParam(t *testing.T) {
	guard := RBAC(RoleSelf, string(models.RoleAdmin), string(models.RoleTeacher))

	student := newRouter(&models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}, guard)
	assert.Equal(t, http.StatusOK, serve(student, "/students/stu-1/compliance", "good"))
	assert.Equal(t, http.StatusForbidden, serve(student, "/students/stu-2/compliance", "good"))

	teacher := newRouter(&models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher}, guard)
	assert.Equal(t, http.StatusOK, serve(teacher, "/students/stu-2/compliance", "good"))

	// SELF only applies to students even when ids collide
	superadmin := newRouter(&models.JWTClaims{UserID: "stu-2", Role: models.RoleSuperAdmin}, RBAC(RoleSelf))
	assert.Equal(t, http.StatusForbidden, serve(superadmin, "/students/stu-2/compliance", "good"))
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, "/x", ""))
}

func TestAuditRecordsSuccessfulRequestsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := &auditWriterStub{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "t-1", Role: models.RoleTeacher})
		c.Next()
	})
	r.GET("/documents/:id/download", Audit(audit, models.AuditActionDocumentDownload, "document"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusForbidden)
			return
		}
		c.Status(http.StatusOK)
	})

	serve(r, "/documents/doc-1/download", "")
	serve(r, "/documents/doc-1/download?fail=1", "")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionDocumentDownload, audit.logs[0].Action)
	assert.Equal(t, "doc-1", *audit.logs[0].ResourceID)
	assert.Equal(t, "t-1", *audit.logs[0].UserID)
}

func TestAuditAttributesAnonymousDownloadsToSignedLink(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := &auditWriterStub{}
	r := gin.New()
	r.GET("/documents/:id/download", Audit(audit, models.AuditActionDocumentDownload, "document"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	serve(r, "/documents/doc-9/download?token=abc", "")

	require.Len(t, audit.logs, 1)
	assert.Nil(t, audit.logs[0].UserID)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(audit.logs[0].NewValues, &body))
	assert.Equal(t, "signed_url", body["via"])
	assert.Equal(t, "/documents/:id/download", body["path"])
}

func TestRBACSelfIgnoresStaffTokensForOtherStudents(t *testing.T) {
	claims := &models.JWTClaims{UserID: "stu-2", Role: models.RoleTeacher}
	assert.False(t, claims.IsSelf("stu-2"))
	assert.True(t, claims.CanAccessStudent("stu-1"))

	student := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}
	assert.True(t, student.CanAccessStudent("stu-1"))
	assert.False(t, student.CanAccessStudent("stu-2"))
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/documents/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, "/documents/abc", "")
	serve(r, "/nowhere", "")

	assert.Equal(t, []string{"/documents/:id", "unmatched"}, observer.paths)
}
