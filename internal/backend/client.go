// Package backend is the HTTP client for the remote generation service. It
// speaks the {operation, payload} envelope over a JSON endpoint and a
// multipart endpoint for file uploads.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

var (
	ErrQuotaExceeded     = errors.New("backend quota exceeded")
	ErrInvalidCredential = errors.New("backend credential invalid")
)

// Error is a non-2xx answer from the backend. Message is the backend's
// {error} field when present, otherwise the raw body.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is classifies the failure so callers can match ErrQuotaExceeded and
// ErrInvalidCredential with errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrQuotaExceeded:
		if e.Status == http.StatusTooManyRequests {
			return true
		}
		m := strings.ToLower(e.Message)
		return strings.Contains(m, "quota") || strings.Contains(m, "resource_exhausted")
	case ErrInvalidCredential:
		return strings.Contains(e.Message, "API_KEY_INVALID") || strings.Contains(e.Message, "API key not valid")
	}
	return false
}

// File is an upload attached to a multipart call.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Caller is what flows and assistants need from the backend.
type Caller interface {
	Call(ctx context.Context, op string, payload, out any) error
	CallWithFiles(ctx context.Context, op string, payload any, files []File, out any) error
}

const maxErrorBody = 64 << 10

type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	validator *Validator
	log       *slog.Logger
}

// NewClient returns a client for baseURL. timeout bounds a single call; file
// uploads and batch operations get twice as long. validator may be nil.
func NewClient(baseURL string, timeout time.Duration, validator *Validator, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		timeout:   timeout,
		validator: validator,
		log:       log,
	}
}

func (c *Client) deadline(op string, withFiles bool) time.Duration {
	if withFiles || op == OpThesisSections || op == OpBookPlan {
		return 2 * c.timeout
	}
	return c.timeout
}

type envelope struct {
	Operation string `json:"operation"`
	Payload   any    `json:"payload"`
}

// Call posts {operation, payload} to /api/json and decodes the response
// into out.
func (c *Client) Call(ctx context.Context, op string, payload, out any) error {
	body, err := json.Marshal(envelope{Operation: op, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", op, err)
	}
	ctx, cancel := c.withDeadline(ctx, op, false)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, out)
}

// CallWithFiles posts a multipart form with operation, payload (as JSON) and
// one "files" part per upload to /api/files.
func (c *Client) CallWithFiles(ctx context.Context, op string, payload any, files []File, out any) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", op, err)
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("operation", op); err != nil {
		return err
	}
	if err := mw.WriteField("payload", string(p)); err != nil {
		return err
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := part.Write(f.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	ctx, cancel := c.withDeadline(ctx, op, true)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/files", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, op, out)
}

func (c *Client) withDeadline(ctx context.Context, op string, withFiles bool) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.deadline(op, withFiles))
}

func (c *Client) do(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("backend call failed", "operation", op, "error", err)
		return fmt.Errorf("backend %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		be := &Error{Status: resp.StatusCode, Message: errorMessage(resp, raw)}
		c.log.Warn("backend error", "operation", op, "status", resp.StatusCode, "error", be.Message)
		return be
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	if c.validator != nil {
		if err := c.validator.ValidateResponse(op, raw); err != nil {
			c.log.Warn("backend response rejected", "operation", op, "error", err)
			return err
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, op, err)
		}
	}
	c.log.Debug("backend call", "operation", op, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// errorMessage prefers the JSON {error} field, then the raw body text.
func errorMessage(resp *http.Response, raw []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fmt.Sprintf("Backend error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
