package conversation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tbourn/alumni-portal/internal/domain"
)

// HTTPSource implements Source against the portal's REST API.
type HTTPSource struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api/v1.
	BaseURL string
	// UserID is sent as X-User-ID on every request.
	UserID string
	Client *http.Client
}

// NewHTTPSource returns a source with a client bounded by timeout.
func NewHTTPSource(baseURL, userID string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		UserID:  userID,
		Client:  &http.Client{Timeout: timeout},
	}
}

type messagesEnvelope struct {
	Messages []domain.Message `json:"messages"`
}

type messageEnvelope struct {
	Message *domain.Message `json:"message"`
}

type sendBody struct {
	ReceiverID string `json:"receiverId"`
	Subject    string `json:"subject,omitempty"`
	Content    string `json:"content"`
}

// APIError is a non-2xx reply from the API.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// Inbox fetches GET /messages/inbox.
func (s *HTTPSource) Inbox(ctx context.Context) ([]domain.Message, error) {
	return s.list(ctx, "/messages/inbox")
}

// Sent fetches GET /messages/sent.
func (s *HTTPSource) Sent(ctx context.Context) ([]domain.Message, error) {
	return s.list(ctx, "/messages/sent")
}

// MarkRead calls PUT /messages/{id}/read.
func (s *HTTPSource) MarkRead(ctx context.Context, id string) error {
	return s.discard(s.do(ctx, http.MethodPut, "/messages/"+url.PathEscape(id)+"/read", nil))
}

// Send calls POST /messages and returns the stored message.
func (s *HTTPSource) Send(ctx context.Context, receiverID, subject, content string) (*domain.Message, error) {
	body, err := json.Marshal(sendBody{ReceiverID: receiverID, Subject: subject, Content: content})
	if err != nil {
		return nil, err
	}
	resp, err := s.do(ctx, http.MethodPost, "/messages", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env messageEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode /messages: %w", err)
	}
	if env.Message == nil {
		return nil, fmt.Errorf("decode /messages: no message in reply")
	}
	return env.Message, nil
}

// Delete calls DELETE /messages/{id}.
func (s *HTTPSource) Delete(ctx context.Context, id string) error {
	return s.discard(s.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id), nil))
}

func (s *HTTPSource) discard(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *HTTPSource) list(ctx context.Context, path string) ([]domain.Message, error) {
	resp, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env messagesEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return env.Messages, nil
}

func (s *HTTPSource) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", s.UserID)
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		apiErr := &APIError{Status: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, apiErr)
		apiErr.Status = resp.StatusCode
		return nil, apiErr
	}
	return resp, nil
}
