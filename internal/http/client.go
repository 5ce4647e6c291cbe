package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/ignatij/tripflow/internal/config"
	"github.com/ignatij/tripflow/internal/log"
	"github.com/ignatij/tripflow/pkg/backend"
	"github.com/ignatij/tripflow/pkg/models"
	"github.com/pkg/errors"
)

// maxErrorBody bounds how much of an error response ends up in error messages.
const maxErrorBody = 512

// Client implements backend.Backend over the orchestration service's HTTP/JSON API.
type Client struct {
	baseURL    string
	routes     config.Routes
	httpClient *http.Client
}

func NewClient(cfg config.BackendConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		routes:     cfg.Routes,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ backend.Backend = (*Client)(nil)

type startResponse struct {
	ID string `json:"id"`
}

func (c *Client) StartWorkflow(ctx context.Context, req models.TravelRequest) (string, error) {
	body, err := c.do(ctx, http.MethodPost, c.routes.Start, "", req)
	if err != nil {
		return "", err
	}
	var resp startResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrapf(backend.ErrTransport, "decode start response: %v", err)
	}
	if resp.ID == "" {
		return "", errors.Wrap(backend.ErrTransport, "start response carries no instance id")
	}
	return resp.ID, nil
}

func (c *Client) GetStatus(ctx context.Context, instanceID string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, c.routes.Status, instanceID, nil)
}

func (c *Client) SubmitApproval(ctx context.Context, instanceID string, decision models.ApprovalDecision) error {
	route := c.routes.Approve
	if !decision.Approved && c.routes.Reject != "" {
		route = c.routes.Reject
	}
	_, err := c.do(ctx, http.MethodPost, route, instanceID, decision)
	return err
}

func (c *Client) endpoint(route, instanceID string) string {
	return c.baseURL + strings.ReplaceAll(route, "{id}", url.PathEscape(instanceID))
}

// do sends one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, route, instanceID string, payload interface{}) ([]byte, error) {
	target := c.endpoint(route, instanceID)

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", method, target)
	}
	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.GetLogger().Debugf("%s %s (request %s)", method, target, requestID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(backend.ErrTransport, "%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(backend.ErrTransport, "read %s %s: %v", method, target, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(backend.ErrNotFound, "%s %s", method, target)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Wrapf(backend.ErrTransport, "%s %s: %s: %s", method, target, resp.Status, snippet(body))
	}
	return body, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	if s == "" {
		return "empty body"
	}
	return fmt.Sprintf("%q", s)
}
