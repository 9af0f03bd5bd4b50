package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDisabledWithoutURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.ErrorIs(t, err, ErrDisabled)
}

func TestAnalyzeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, analyzePath, r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "doc-1", req.DocumentID)
		_, _ = w.Write([]byte(`{"suggestedOutcome":"reject","confidence":0.82,"reasons":["blurry"],"suggestedComment":"Imagen ilegible"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "key"})
	require.NoError(t, err)
	suggestion, err := client.Analyze(context.Background(), AnalyzeRequest{DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, "REJECT", suggestion.SuggestedOutcome)
	assert.Equal(t, []string{"blurry"}, suggestion.Reasons)
	assert.Equal(t, "Imagen ilegible", suggestion.SuggestedComment)
}

func TestAnalyzeRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"suggestedOutcome":"APPROVE","confidence":0.9}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, MaxRetries: 1})
	require.NoError(t, err)
	suggestion, err := client.Analyze(context.Background(), AnalyzeRequest{DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.Equal(t, "APPROVE", suggestion.SuggestedOutcome)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestAnalyzeClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unsupported mime"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = client.Analyze(context.Background(), AnalyzeRequest{})
	require.EqualError(t, err, "advisor: HTTP 400: unsupported mime")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestAnalyzeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, MaxRetries: -1})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Analyze(ctx, AnalyzeRequest{})
	require.Error(t, err)
}

func TestAnalyzeMissingOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"confidence":0.5}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = client.Analyze(context.Background(), AnalyzeRequest{})
	require.Error(t, err)
}
