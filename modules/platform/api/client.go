package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fred-chat/modules"
	"fred-chat/modules/core/agents"
	"fred-chat/modules/core/chat"
)

// Endpoint paths relative to the API base
const (
	PathQueryWS     = "/fred/chatbot/query/ws"
	PathSessions    = "/fred/chatbot/sessions"
	PathSession     = "/fred/chatbot/session/"
	PathAgentFlows  = "/fred/chatbot/agenticflows"
	PathUpload      = "/fred/chatbot/upload"
	PathTranscribe  = "/fred/chatbot/transcribe"
	PathFeedback    = "/fred/chatbot/feedback"
	defaultTimeout  = 30 * time.Second
	maxErrorPayload = 64 * 1024
)

// APIError is a non-2xx answer from the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps an APIError, nil if err is not one
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// Client is the REST client for the chat backend
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a client for the given API base URL
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListSessions returns the sessions of the current user
func (c *Client) ListSessions(ctx context.Context) ([]chat.Session, error) {
	var sessions []chat.Session
	if err := c.doJSON(ctx, http.MethodGet, PathSessions, nil, &sessions); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession deletes a session on the backend
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}
	if err := c.doJSON(ctx, http.MethodDelete, PathSession+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// History returns the turns of a session
func (c *Client) History(ctx context.Context, id string) ([]chat.Turn, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("session id is required")
	}
	var turns []chat.Turn
	if err := c.doJSON(ctx, http.MethodGet, PathSession+url.PathEscape(id)+"/history", nil, &turns); err != nil {
		return nil, fmt.Errorf("failed to load history of %s: %w", id, err)
	}
	return turns, nil
}

// AgenticFlows returns the agents exposed by the backend
func (c *Client) AgenticFlows(ctx context.Context) ([]agents.AgenticFlow, error) {
	var flows []agents.AgenticFlow
	if err := c.doJSON(ctx, http.MethodGet, PathAgentFlows, nil, &flows); err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return flows, nil
}

// Upload sends one attachment as multipart form data
func (c *Client) Upload(ctx context.Context, req chat.UploadRequest) error {
	fields := map[string]string{
		"user_id":    req.UserID,
		"session_id": req.SessionID,
		"agent_name": req.AgentName,
	}
	if err := c.doMultipart(ctx, PathUpload, fields, req.File.Name, req.File.Data, nil); err != nil {
		return fmt.Errorf("failed to upload %s: %w", req.File.Name, err)
	}
	return nil
}

// Transcribe converts an audio clip to text, empty when nothing was heard
func (c *Client) Transcribe(ctx context.Context, clip chat.AudioClip) (string, error) {
	var resp struct {
		Text *string `json:"text"`
	}
	name := clip.Name
	if name == "" {
		name = "audio.webm"
	}
	if err := c.doMultipart(ctx, PathTranscribe, nil, name, clip.Data, &resp); err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	if resp.Text == nil {
		return "", nil
	}
	return strings.TrimSpace(*resp.Text), nil
}

// Feedback rates an assistant turn
func (c *Client) Feedback(ctx context.Context, fb chat.Feedback) error {
	if err := c.doJSON(ctx, http.MethodPost, PathFeedback, fb, nil); err != nil {
		return fmt.Errorf("failed to send feedback: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", modules.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) doMultipart(ctx context.Context, path string, fields map[string]string, fileName string, data []byte, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeAPIError extracts a human-readable message from an error payload
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPayload))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var payload map[string]interface{}
	if json.Unmarshal(body, &payload) == nil {
		for _, key := range []string{"detail", "message", "error"} {
			switch v := payload[key].(type) {
			case string:
				apiErr.Message = v
			case nil:
				continue
			default:
				data, _ := json.Marshal(v)
				apiErr.Message = string(data)
			}
			if apiErr.Message != "" {
				return apiErr
			}
		}
	}

	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
