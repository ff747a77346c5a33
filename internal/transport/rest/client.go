package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vedran77/pulsesync/internal/domain"
	"github.com/vedran77/pulsesync/internal/port"
	"github.com/vedran77/pulsesync/pkg/logger"
)

const (
	defaultTimeout = 20 * time.Second
	maxPageSize    = 100
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("api error: %s (%d): %s", e.Code, e.Status, e.Message)
	case e.Code != "" && len(e.Fields) > 0:
		return fmt.Sprintf("api error: %s (%d): %v", e.Code, e.Status, e.Fields)
	case e.Code != "":
		return fmt.Sprintf("api error: %s (%d)", e.Code, e.Status)
	case e.Message != "":
		return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

type apiErrorPayload struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// Client talks to the backend's DM endpoints and implements port.Transport.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

var _ port.Transport = (*Client)(nil)

type Option func(*Client)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit allows rps requests per second. Zero or less disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    normalized,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		log:        logger.Component("rest"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NormalizeBaseURL trims the API url and makes sure it has a scheme and host.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("api url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("api url must include scheme (https://)")
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("api url must include a host")
	}
	return strings.TrimRight(value, "/"), nil
}

func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/dms", nil, nil, &convs, false); err != nil {
		return nil, err
	}
	return convs, nil
}

// ListMessages fetches messages older than cursor, oldest first. An empty
// cursor asks for the newest page.
func (c *Client) ListMessages(ctx context.Context, conversationID, cursor string, limit int) (*domain.MessagePage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("before", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(min(limit, maxPageSize)))
	}

	var page domain.MessagePage
	path := "/api/v1/dms/" + url.PathEscape(conversationID) + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &page, false); err != nil {
		return nil, err
	}
	for i := range page.Messages {
		if page.Messages[i].ConversationID == "" {
			page.Messages[i].ConversationID = conversationID
		}
	}
	if page.NextCursor == "" && page.HasMore {
		page.NextCursor = oldestID(page.Messages)
	}
	if !page.HasMore {
		page.NextCursor = ""
	}
	return &page, nil
}

func oldestID(messages []domain.Message) string {
	var oldest *domain.Message
	for i := range messages {
		m := &messages[i]
		if oldest == nil || m.CreatedAt.Before(oldest.CreatedAt) ||
			(m.CreatedAt.Equal(oldest.CreatedAt) && m.ID < oldest.ID) {
			oldest = m
		}
	}
	if oldest == nil {
		return ""
	}
	return oldest.ID
}

func (c *Client) SendMessage(ctx context.Context, req port.SendRequest) (*domain.Message, error) {
	var msg domain.Message
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/dms/messages", nil, req, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) Reply(ctx context.Context, replyToID string, req port.SendRequest) (*domain.Message, error) {
	var msg domain.Message
	path := messagePath(replyToID) + "/replies"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, req, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) AddReaction(ctx context.Context, messageID, emoji string) (*domain.Message, error) {
	body := map[string]string{"emoji": emoji}
	return c.messageCall(ctx, http.MethodPost, messagePath(messageID)+"/reactions", nil, body)
}

func (c *Client) RemoveReaction(ctx context.Context, messageID, emoji string) (*domain.Message, error) {
	path := messagePath(messageID) + "/reactions/" + url.PathEscape(emoji)
	return c.messageCall(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) SetPinned(ctx context.Context, messageID string, pinned bool) (*domain.Message, error) {
	body := map[string]bool{"pinned": pinned}
	return c.messageCall(ctx, http.MethodPut, messagePath(messageID)+"/pin", nil, body)
}

// DeleteMessage returns nil without error when the backend answers with no body.
func (c *Client) DeleteMessage(ctx context.Context, messageID string, scope domain.DeleteScope) (*domain.Message, error) {
	query := url.Values{}
	query.Set("scope", string(scope))
	return c.messageCall(ctx, http.MethodDelete, messagePath(messageID), query, nil)
}

func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	path := "/api/v1/dms/" + url.PathEscape(conversationID) + "/read"
	return c.doJSON(ctx, http.MethodPost, path, nil, nil, nil, false)
}

func messagePath(messageID string) string {
	return "/api/v1/dms/messages/" + url.PathEscape(messageID)
}

// messageCall decodes an optional message body.
func (c *Client) messageCall(ctx context.Context, method, path string, query url.Values, body any) (*domain.Message, error) {
	var msg *domain.Message
	if err := c.doJSON(ctx, method, path, query, body, &msg, false); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody, respBody any, idempotent bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint, err := c.buildURL(path, query)
	if err != nil {
		return err
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	requestID := uuid.NewString()
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if idempotent {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("took", time.Since(started)).
		Msg("request")

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, respData)
	}

	if respBody == nil || len(bytes.TrimSpace(respData)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respData, respBody); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}

func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{Status: status}
	var payload apiErrorPayload
	if err := json.Unmarshal(data, &payload); err == nil && (payload.Error.Code != "" || payload.Error.Message != "") {
		apiErr.Code = payload.Error.Code
		apiErr.Message = payload.Error.Message
		apiErr.Fields = payload.Error.Fields
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	return apiErr
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}
