package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gridwire/internal/domain"
	"github.com/vadiminshakov/gridwire/pkg/retrier"
)

const defaultRequestTimeout = 15 * time.Second

// GridSummary is the API's representation of a managed grid.
type GridSummary struct {
	ID        string                   `json:"id"`
	Status    string                   `json:"status"`
	Config    domain.GridConfiguration `json:"config"`
	CreatedAt time.Time                `json:"created_at"`
}

// GridAPIClient talks to the external grid management API. Transient
// failures (network errors, 5xx) are retried with exponential backoff;
// definitive ones (4xx) surface immediately as domain.RequestError.
type GridAPIClient struct {
	baseURL    string
	httpClient *http.Client
	retrier    *retrier.Retrier
}

// NewGridAPIClient creates a client for the grid management API.
func NewGridAPIClient(baseURL string, opts ...retrier.Option) *GridAPIClient {
	return &GridAPIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		retrier: retrier.New(opts...),
	}
}

// CreateGrid registers a configuration and returns the assigned grid.
func (c *GridAPIClient) CreateGrid(ctx context.Context, cfg domain.GridConfiguration) (GridSummary, error) {
	var out GridSummary
	err := c.do(ctx, http.MethodPost, "/grids", cfg, &out)
	return out, err
}

// ListGrids returns every grid the API manages for the caller.
func (c *GridAPIClient) ListGrids(ctx context.Context) ([]GridSummary, error) {
	var out []GridSummary
	err := c.do(ctx, http.MethodGet, "/grids", nil, &out)
	return out, err
}

// GetGrid fetches one grid by ID.
func (c *GridAPIClient) GetGrid(ctx context.Context, id string) (GridSummary, error) {
	var out GridSummary
	err := c.do(ctx, http.MethodGet, "/grids/"+id, nil, &out)
	return out, err
}

// StopGrid halts a running grid.
func (c *GridAPIClient) StopGrid(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/grids/"+id+"/stop", nil, nil)
}

// PauseGrid suspends fills without tearing the grid down.
func (c *GridAPIClient) PauseGrid(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/grids/"+id+"/pause", nil, nil)
}

// ResumeGrid resumes a paused grid.
func (c *GridAPIClient) ResumeGrid(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/grids/"+id+"/resume", nil, nil)
}

// DeleteGrid removes a grid entirely.
func (c *GridAPIClient) DeleteGrid(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/grids/"+id, nil, nil)
}

// do runs one API call through the retrier. A 4xx response aborts the loop
// via retrier.Permanent; 5xx and transport errors are retried.
func (c *GridAPIClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request body")
		}
	}

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return retrier.Permanent(errors.Wrap(err, "build request"))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return errors.Wrapf(err, "%s %s", method, path)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "read response body")
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil || len(data) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return retrier.Permanent(errors.Wrap(err, "decode response"))
			}
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return retrier.Permanent(&domain.RequestError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("%s %s: %s", method, path, strings.TrimSpace(string(data))),
			})
		default:
			return &domain.RequestError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("%s %s: %s", method, path, strings.TrimSpace(string(data))),
			}
		}
	})
}
