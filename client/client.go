// Package client talks to a churnsearch server over HTTP.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/meghashyamc/churnsearch/domain"
	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/search"
	"github.com/meghashyamc/churnsearch/services/session"
	"github.com/meghashyamc/churnsearch/services/settings"
)

const maxSnapshotSize = 16 * 1024 * 1024

// StatusError is returned for every non-success HTTP status.
type StatusError struct {
	StatusCode int
	Messages   []string
}

func (e *StatusError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []string        `json:"errors"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

func New(logger logger.Logger, baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Get returns the remote strategy registered under name on the server.
func (c *Client) Get(name string) (search.Searcher, error) {
	return c.Strategy(name), nil
}

func (c *Client) Strategy(name string) *RemoteStrategy {
	if name == "" {
		name = search.DefaultStrategy
	}
	return &RemoteStrategy{client: c, name: name}
}

// RemoteStrategy runs searches on the server and decodes the streamed snapshots.
type RemoteStrategy struct {
	client *Client
	name   string
}

func (r *RemoteStrategy) Search(ctx context.Context, request *search.Request, options search.Options) (<-chan *search.Response, error) {
	if request == nil {
		request = &search.Request{}
	}
	name := r.name
	if options.Strategy != "" {
		name = options.Strategy
	}

	resp, err := r.client.do(ctx, http.MethodPost, "/internal/search/"+url.PathEscape(name), request)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	out := make(chan *search.Response)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), maxSnapshotSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			snapshot := &search.Response{}
			if err := json.Unmarshal(line, snapshot); err != nil {
				r.client.logger.Warn("could not decode search snapshot", "err", err.Error())
				return
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			r.client.logger.Warn("search stream broke off", "strategy", name, "err", err.Error())
		}
	}()

	return out, nil
}

func (r *RemoteStrategy) Cancel(ctx context.Context, id string) error {
	resp, err := r.client.do(ctx, http.MethodDelete, "/internal/search/"+url.PathEscape(r.name)+"/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// SuspectList posts params to the side channel route.
func (c *Client) SuspectList(ctx context.Context, params search.Params) (*session.SideResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/suspect_list", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	result := &session.SideResult{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, fmt.Errorf("could not decode suspect list response: %w", err)
	}
	return result, nil
}

// DefaultIndex asks the server which index searches run against by default.
func (c *Client) DefaultIndex(ctx context.Context) (string, error) {
	resolution := settings.Resolution{}
	if err := c.getData(ctx, "/api/v1/settings/default_index", &resolution); err != nil {
		return "", err
	}
	return resolution.Index, nil
}

// Ingest queues records for indexing and returns the request id to poll.
func (c *Client) Ingest(ctx context.Context, index string, records []domain.Record, replace bool) (string, error) {
	body := map[string]any{"index": index, "records": records, "replace": replace}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/ingest", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return "", statusError(resp)
	}

	accepted := struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return "", fmt.Errorf("could not decode ingest response: %w", err)
	}
	return accepted.Data.ID, nil
}

// IngestStatus returns the progress of an ingest request in percent.
func (c *Client) IngestStatus(ctx context.Context, id string) (int, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/ingest/"+url.PathEscape(id), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return 0, statusError(resp)
	}

	status := struct {
		Data struct {
			Progress int `json:"progress"`
		} `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return 0, fmt.Errorf("could not decode ingest status: %w", err)
	}
	return status.Data.Progress, nil
}

func (c *Client) getData(ctx context.Context, path string, data any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	body := envelope{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("could not decode response of %s: %w", path, err)
	}
	return json.Unmarshal(body.Data, data)
}

func (c *Client) do(ctx context.Context, method string, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// statusError reads the error envelope when there is one. Some routes answer with no body.
func statusError(resp *http.Response) error {
	statusErr := &StatusError{StatusCode: resp.StatusCode}
	body := envelope{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil {
		statusErr.Messages = body.Errors
	}
	return statusErr
}
