package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tabserve/internal/domain"
)

// APIError carries the server's error envelope.
type APIError struct {
	HTTPStatus int
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned HTTP %d", e.HTTPStatus)
}

// Client is a thin HTTP client for the job service API.
type Client struct {
	BaseURL string
	Token   string

	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Accepted is the response to a job submission.
type Accepted struct {
	Token  int64  `json:"token"`
	Status string `json:"status"`
}

// Submit posts params to the submit endpoint for the given job kind.
func (c *Client) Submit(kind string, params interface{}) (*Accepted, error) {
	var accepted Accepted
	if err := c.do(http.MethodPost, "/v1/"+kind, params, &accepted); err != nil {
		return nil, err
	}
	return &accepted, nil
}

// GetJob fetches the full job record.
func (c *Client) GetJob(token int64) (*domain.Job, error) {
	var j domain.Job
	if err := c.do(http.MethodGet, fmt.Sprintf("/v1/jobs/%d", token), nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs fetches all live jobs, newest first.
func (c *Client) ListJobs() ([]domain.Job, error) {
	var body struct {
		Jobs []domain.Job `json:"jobs"`
	}
	if err := c.do(http.MethodGet, "/v1/jobs", nil, &body); err != nil {
		return nil, err
	}
	return body.Jobs, nil
}

// CancelJob requests cancellation and reports whether this call cancelled
// the job.
func (c *Client) CancelJob(token int64) (bool, error) {
	var body struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := c.do(http.MethodDelete, fmt.Sprintf("/v1/jobs/%d", token), nil, &body); err != nil {
		return false, err
	}
	return body.Cancelled, nil
}

// History fetches the persistent job history, newest first.
func (c *Client) History(limit int) ([]domain.JobHistoryEntry, error) {
	path := "/v1/jobs/history"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var body struct {
		History []domain.JobHistoryEntry `json:"history"`
	}
	if err := c.do(http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.History, nil
}

func (c *Client) do(method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
