package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const SessionHeader = "X-Chat-Session-Id"

// Client calls the tutor API. It holds no global state; build one per
// base URL and token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		// no timeout: chat responses stream for as long as generation runs
		HTTP: &http.Client{},
	}
}

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status    int
	Code      int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("api error %d (code %d): %s [request_id=%s]", e.Status, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("api error %d (code %d): %s", e.Status, e.Code, e.Message)
}

type Progress struct {
	LastAccessedAt      *time.Time `json:"last_accessed_at"`
	CompletedPercentage *int       `json:"completed_percentage"`
}

type Content struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	TopicName  string    `json:"topic_name"`
	SourceType string    `json:"source_type"`
	CreatedAt  time.Time `json:"created_at"`
	Progress   *Progress `json:"learning_progress,omitempty"`
}

// Message is one transcript entry. Server rows carry their numeric id as a
// string; optimistic entries get a "local-" id.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Transcript struct {
	Content   Content
	SessionID string
	Messages  []Message
}

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(b))}
	var env envelope
	if json.Unmarshal(b, &env) == nil && env.Message != "" {
		apiErr.Code = env.Code
		apiErr.Message = env.Message
		apiErr.RequestID = env.RequestID
	}
	return apiErr
}

// do sends a JSON request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) ListContents(ctx context.Context) ([]Content, error) {
	var data struct {
		Contents []Content `json:"contents"`
	}
	if err := c.do(ctx, http.MethodGet, "/contents", nil, &data); err != nil {
		return nil, err
	}
	return data.Contents, nil
}

func (c *Client) GenerateContent(ctx context.Context, topics []string) ([]Content, error) {
	var data struct {
		Contents []Content `json:"contents"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate-content", map[string]any{"topics": topics}, &data); err != nil {
		return nil, err
	}
	return data.Contents, nil
}

func (c *Client) DeleteContent(ctx context.Context, id string) (bool, error) {
	var data struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/contents/"+id, nil, &data); err != nil {
		return false, err
	}
	return data.Deleted, nil
}

// LoadChat fetches the content, its session id (if any) and prior messages.
func (c *Client) LoadChat(ctx context.Context, contentID string) (*Transcript, error) {
	var data struct {
		Content       Content `json:"content"`
		ChatSessionID string  `json:"chat_session_id"`
		Messages      []struct {
			ID      uint64 `json:"id"`
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/contents/"+contentID+"/chat", nil, &data); err != nil {
		return nil, err
	}

	tr := &Transcript{
		Content:   data.Content,
		SessionID: data.ChatSessionID,
		Messages:  make([]Message, 0, len(data.Messages)),
	}
	for _, m := range data.Messages {
		tr.Messages = append(tr.Messages, Message{
			ID:      strconv.FormatUint(m.ID, 10),
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return tr, nil
}

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages      []ChatTurn `json:"messages"`
	ContentID     string     `json:"contentId"`
	ChatSessionID string     `json:"chatSessionId,omitempty"`
}

// ChatStream is an open reply stream. The caller must close Body.
type ChatStream struct {
	SessionID string
	Body      io.ReadCloser
}

// StreamChat starts a chat turn. Non-2xx responses are returned as *APIError.
func (c *Client) StreamChat(ctx context.Context, r ChatRequest) (*ChatStream, error) {
	if r.Messages == nil {
		r.Messages = []ChatTurn{}
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/chat-stream", r)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return &ChatStream{
		SessionID: resp.Header.Get(SessionHeader),
		Body:      resp.Body,
	}, nil
}
