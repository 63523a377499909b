package mailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gologme/log"
	"github.com/google/uuid"

	"github.com/nhle/mailclient/internal/model"
)

// defaultTimeout bounds a single HTTP round trip when the config sets none.
const defaultTimeout = 30 * time.Second

// RESTConfig holds configuration for creating a RESTClient.
type RESTConfig struct {
	BaseURL       string
	Token         string
	AllowInsecure bool
	Timeout       time.Duration
	Logger        *log.Logger
}

// RESTClient talks to the mail store's JSON API:
//
//	GET  /emails/{mailbox}
//	GET  /emails/{id}
//	PUT  /emails/{id}
//	POST /emails
type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *log.Logger
}

var _ Client = (*RESTClient)(nil)

// NewRESTClient validates cfg and returns a client. Plain http:// URLs are
// refused unless AllowInsecure is set.
func NewRESTClient(cfg RESTConfig) (*RESTClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mail API URL is required")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mail API URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf(
			"mail API URL scheme must be http or https, got: %s",
			parsed.Scheme,
		)
	}
	if parsed.Scheme == "http" && !cfg.AllowInsecure {
		return nil, fmt.Errorf(
			"HTTPS required for %s (set api.allow_insecure for trusted networks)",
			cfg.BaseURL,
		)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("mail API URL must include a host")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &RESTClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger,
	}, nil
}

// ListMailbox fetches every message in mb.
func (c *RESTClient) ListMailbox(
	ctx context.Context,
	mb model.Mailbox,
) ([]model.Message, error) {
	op := "list " + string(mb)

	status, body, err := c.do(ctx, op, http.MethodGet, "/emails/"+url.PathEscape(string(mb)), nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, statusError(op, status, body)
	}

	var msgs []model.Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, &NetworkError{Op: op, Malformed: true, Err: err}
	}

	return msgs, nil
}

// GetMessage fetches a single message by id.
func (c *RESTClient) GetMessage(
	ctx context.Context,
	id model.MessageID,
) (model.Message, error) {
	op := "get message " + id.String()

	status, body, err := c.do(ctx, op, http.MethodGet, "/emails/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return model.Message{}, err
	}
	if !isSuccess(status) {
		return model.Message{}, statusError(op, status, body)
	}

	var msg model.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return model.Message{}, &NetworkError{Op: op, Malformed: true, Err: err}
	}
	if msg.ID == "" {
		return model.Message{}, &NetworkError{
			Op:        op,
			Malformed: true,
			Err:       errors.New("response has no id"),
		}
	}

	return msg, nil
}

// UpdateMessage sends a partial update. An empty patch is a no-op.
func (c *RESTClient) UpdateMessage(
	ctx context.Context,
	id model.MessageID,
	patch model.Patch,
) error {
	if patch.Empty() {
		return nil
	}

	op := "update message " + id.String()

	status, body, err := c.do(ctx, op, http.MethodPut, "/emails/"+url.PathEscape(id.String()), patch)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return statusError(op, status, body)
	}

	return nil
}

// CreateMessage posts a new message. A 4xx answer carrying an {"error": ...}
// payload is a validation failure and comes back in the result.
func (c *RESTClient) CreateMessage(
	ctx context.Context,
	fields model.ComposeFields,
) (model.CreateResult, error) {
	op := "create message"

	status, body, err := c.do(ctx, op, http.MethodPost, "/emails", fields)
	if err != nil {
		return model.CreateResult{}, err
	}

	var result model.CreateResult
	decodeErr := json.Unmarshal(body, &result)

	switch {
	case isSuccess(status):
		if decodeErr != nil {
			return model.CreateResult{}, &NetworkError{
				Op: op, Malformed: true, Err: decodeErr,
			}
		}
		// A success status never carries a rejection.
		result.Error = ""
		return result, nil

	case status >= 400 && status < 500 && decodeErr == nil && result.Error != "":
		c.log.Infof("%s rejected: %s", op, result.Error)
		return model.CreateResult{Error: result.Error}, nil

	default:
		return model.CreateResult{}, statusError(op, status, body)
	}
}

// do builds and executes a request and returns the status and full body.
// Transport failures come back as a NetworkError.
func (c *RESTClient) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	body interface{},
) (int, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Errorf("%s %s [%s] failed: %v", method, path, requestID, err)
		return 0, nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &NetworkError{
			Op: op, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("reading response body: %w", err),
		}
	}

	c.log.Debugf(
		"%s %s [%s] -> %d in %s",
		method, path, requestID, resp.StatusCode, time.Since(start),
	)

	return resp.StatusCode, respBody, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// apiError is the error body shape used by the mail API.
type apiError struct {
	Error string `json:"error"`
}

// statusError turns a non-success response into a NetworkError, preferring
// the API's own error text when the body has one. Rejected credentials
// become an AuthError.
func statusError(op string, status int, body []byte) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &AuthError{
			Backend: "rest",
			Message: fmt.Sprintf("%s: %s", op, http.StatusText(status)),
		}
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return &NetworkError{
			Op: op, StatusCode: status, Err: errors.New(apiErr.Error),
		}
	}

	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		text = http.StatusText(status)
	}

	return &NetworkError{Op: op, StatusCode: status, Err: errors.New(text)}
}
