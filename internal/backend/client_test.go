package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	v, err := NewValidator()
	require.NoError(t, err)
	return NewClient(srv.URL+"/", 5*time.Second, v, nil)
}

func TestNewValidator_CoversEveryMappedOperation(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)
	for op, name := range responseSchemas {
		assert.NotNil(t, v.schemas[name], op)
	}
}

func TestCall_SendsEnvelope(t *testing.T) {
	var got envelope
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))
		w.Write([]byte(`{"docType":"Эссе","text":"hello","tokenCount":2}`))
	})

	var res Result
	err := c.Call(context.Background(), OpGenerateText, map[string]any{"topic": "t", "age": 12}, &res)
	require.NoError(t, err)

	assert.Equal(t, "/api/json", path)
	assert.Equal(t, OpGenerateText, got.Operation)
	assert.Equal(t, "t", got.Payload.(map[string]any)["topic"])
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, 2, res.TokenCount)
}

func TestCallWithFiles_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, OpAnalyzeUserDocuments, r.FormValue("operation"))
		assert.JSONEq(t, `{"prompt":"check"}`, r.FormValue("payload"))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.txt", files[0].Filename)
		assert.Equal(t, "text/plain", files[0].Header.Get("Content-Type"))
		w.Write([]byte(`{"text":"done"}`))
	})

	var res Result
	err := c.CallWithFiles(context.Background(), OpAnalyzeUserDocuments, map[string]string{"prompt": "check"}, []File{
		{Name: "a.txt", ContentType: "text/plain", Data: []byte("aaa")},
		{Name: "b.pdf", Data: []byte("%PDF")},
	}, &res)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
}

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------

func TestCall_Errors(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		wantMsg    string
		quota      bool
		credential bool
	}{
		{name: "json error field", status: 500, body: `{"error":"model overloaded"}`, wantMsg: "model overloaded"},
		{name: "raw text body", status: 502, body: "upstream down", wantMsg: "upstream down"},
		{name: "empty body", status: 503, body: "", wantMsg: "Backend error: 503 Service Unavailable"},
		{name: "429 status", status: 429, body: `{"error":"slow down"}`, wantMsg: "slow down", quota: true},
		{name: "quota wording", status: 500, body: `{"error":"You exceeded your current quota"}`, wantMsg: "You exceeded your current quota", quota: true},
		{name: "invalid key", status: 400, body: `{"error":"API key not valid. Please pass a valid API key."}`, wantMsg: "API key not valid. Please pass a valid API key.", credential: true},
		{name: "invalid key code", status: 400, body: `{"error":"[400] API_KEY_INVALID"}`, wantMsg: "[400] API_KEY_INVALID", credential: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})
			err := c.Call(context.Background(), OpForecasting, map[string]string{"prompt": "x"}, nil)
			require.Error(t, err)

			var be *Error
			require.True(t, errors.As(err, &be))
			assert.Equal(t, tc.status, be.Status)
			assert.Equal(t, tc.wantMsg, be.Message)
			assert.Equal(t, tc.quota, errors.Is(err, ErrQuotaExceeded))
			assert.Equal(t, tc.credential, errors.Is(err, ErrInvalidCredential))
		})
	}
}

func TestCall_RejectsMalformedPlan(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Book","chapters":[]}`))
	})
	var plan BookPlan
	err := c.Call(context.Background(), OpBookPlan, map[string]any{}, &plan)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestCall_CodeAnalysisShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plan":"1. parse","complexity":"low","cost":3}`))
	})
	var a CodeAnalysis
	require.NoError(t, c.Call(context.Background(), OpAnalyzeCodeTask, map[string]any{}, &a))
	assert.Equal(t, 3, a.Cost)

	bad := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"plan":"1. parse","complexity":"low","cost":"three"}`))
	})
	err := bad.Call(context.Background(), OpAnalyzeCodeTask, map[string]any{}, &a)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestCall_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Call(ctx, OpGenerateText, map[string]any{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
