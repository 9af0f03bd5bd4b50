package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-docs-api/internal/dto"
	"github.com/noah-isme/sma-docs-api/internal/models"
	"github.com/noah-isme/sma-docs-api/internal/service"
	appErrors "github.com/noah-isme/sma-docs-api/pkg/errors"
)

type submissionServiceMock struct {
	studentID string
	actorID   string
	req       dto.SubmitDocumentRequest
	content   []byte
	filename  string
	query     dto.DocumentQuery
	file      string
	token     string
}

func (m *submissionServiceMock) Submit(_ context.Context, studentID, actorID string, req dto.SubmitDocumentRequest, upload service.DocumentUpload) (*models.DocumentInstance, error) {
	m.studentID, m.actorID, m.req, m.filename = studentID, actorID, req, upload.Filename
	m.content, _ = io.ReadAll(upload.Content)
	return &models.DocumentInstance{ID: "doc-1", StudentID: studentID, TemplateID: req.TemplateID, State: models.DocumentStatePending}, nil
}

func (m *submissionServiceMock) History(_ context.Context, _ string, query dto.DocumentQuery) ([]models.DocumentInstance, error) {
	m.query = query
	return []models.DocumentInstance{}, nil
}

func (m *submissionServiceMock) DownloadURL(_ context.Context, id string, actor *models.JWTClaims) (*dto.DownloadURLResponse, error) {
	if actor.Role == models.RoleStudent && actor.UserID != "stu-1" {
		return nil, appErrors.ErrForbidden
	}
	return &dto.DownloadURLResponse{DocumentID: id, DownloadURL: "/api/v1/documents/" + id + "/download?token=x", ExpiresAt: time.Now()}, nil
}

func (m *submissionServiceMock) Download(_ context.Context, _, token string) (*service.DocumentDownload, error) {
	m.token = token
	if token != "ok" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	file, err := os.Open(m.file)
	if err != nil {
		return nil, err
	}
	info, _ := file.Stat()
	return &service.DocumentDownload{File: file, Filename: "acta.pdf", MimeType: "application/pdf", SizeBytes: info.Size()}, nil
}

type withdrawMock struct {
	id, studentID string
	err           error
}

func (w *withdrawMock) Withdraw(_ context.Context, id, studentID string) error {
	w.id, w.studentID = id, studentID
	return w.err
}

func TestDocumentHandlerUploadMultipart(t *testing.T) {
	mock := &submissionServiceMock{}
	h := NewDocumentHandler(mock, &withdrawMock{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("templateId", "tpl-1"))
	part, err := writer.CreateFormFile("file", "acta.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, writer.Close())

	c, rec := newTestContext(http.MethodPost, "/students/stu-1/documents", body, studentClaims)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.Params = gin.Params{{Key: "studentId", Value: "stu-1"}}

	h.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "stu-1", mock.studentID)
	assert.Equal(t, "stu-1", mock.actorID)
	assert.Equal(t, "tpl-1", mock.req.TemplateID)
	assert.Equal(t, "acta.pdf", mock.filename)
	assert.Equal(t, "%PDF-1.4", string(mock.content))
}

func TestDocumentHandlerUploadRequiresFile(t *testing.T) {
	h := NewDocumentHandler(&submissionServiceMock{}, &withdrawMock{})
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("templateId", "tpl-1"))
	require.NoError(t, writer.Close())

	c, rec := newTestContext(http.MethodPost, "/students/stu-1/documents", body, studentClaims)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentHandlerDownloadStreamsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acta.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 body"), 0o600))
	mock := &submissionServiceMock{file: path}
	h := NewDocumentHandler(mock, &withdrawMock{})

	c, rec := newTestContext(http.MethodGet, "/documents/doc-1/download", nil, nil)
	h.Download(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/documents/doc-1/download?token=bad", nil, nil)
	h.Download(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/documents/doc-1/download?token=ok", nil, nil)
	h.Download(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4 body", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "acta.pdf")
}

func TestDocumentHandlerDownloadURLAndWithdraw(t *testing.T) {
	withdraw := &withdrawMock{}
	h := NewDocumentHandler(&submissionServiceMock{}, withdraw)

	c, rec := newTestContext(http.MethodGet, "/documents/doc-1/download-url", nil, &models.JWTClaims{UserID: "stu-9", Role: models.RoleStudent})
	h.DownloadURL(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/documents/doc-1/download-url", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	h.DownloadURL(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), "/documents/doc-1/download?token=")

	c, _ = newTestContext(http.MethodDelete, "/documents/doc-1", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	h.Withdraw(c)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "doc-1", withdraw.id)
	assert.Equal(t, "stu-1", withdraw.studentID)

	withdraw.err = appErrors.Clone(appErrors.ErrInvalidTransition, "only pending documents can be withdrawn")
	c, rec = newTestContext(http.MethodDelete, "/documents/doc-1", nil, studentClaims)
	h.Withdraw(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDocumentHandlerListBindsQuery(t *testing.T) {
	mock := &submissionServiceMock{}
	h := NewDocumentHandler(mock, &withdrawMock{})
	c, rec := newTestContext(http.MethodGet, "/students/stu-1/documents?templateId=tpl-1&state=PENDING", nil, studentClaims)

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.DocumentQuery{TemplateID: "tpl-1", State: "PENDING"}, mock.query)
}
