package modelclient

// HTTP client for the model domain and dataset service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tturner/gpdplot/internal/errors"
	"github.com/tturner/gpdplot/internal/gpd"
	"github.com/tturner/gpdplot/internal/logging"
	"github.com/tturner/gpdplot/internal/metrics"
)

// Operation names used in logs and DomainUnavailableError.Op
const (
	OpModelDomain  = "model-domain"
	OpDomainForXbj = "domain-for-xbj"
	OpDomainForT   = "domain-for-t"
	OpDataset      = "dataset"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 16 << 20

// Client talks to the model service over HTTP/JSON.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.Logger
	metrics *metrics.Sink
}

// NewClient creates a client for baseURL (e.g. "http://localhost:5000").
// A zero timeout leaves requests bounded only by their context.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// WithMetrics records every request into sink.
func (c *Client) WithMetrics(sink *metrics.Sink) *Client {
	c.metrics = sink
	return c
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type domainResponse struct {
	Xbj []float64 `json:"xbj"`
	T   []float64 `json:"t"`
}

type xbjResponse struct {
	T        []float64 `json:"t"`
	Q2MinMax []float64 `json:"q2MinMax"`
}

type tResponse struct {
	Xbj      []float64 `json:"xbj"`
	Q2MinMax []float64 `json:"q2MinMax"`
}

// ResolveForModel fetches both choice lists for a (model, gpd) pair.
func (c *Client) ResolveForModel(ctx context.Context, model gpd.Model, g gpd.GPD) (gpd.Domain, error) {
	var resp domainResponse
	if err := c.getJSON(ctx, OpModelDomain, c.modelPath(model, g, "domain"), &resp); err != nil {
		return gpd.Domain{}, &gpd.DomainUnavailableError{Op: OpModelDomain, Err: err}
	}
	if len(resp.Xbj) == 0 || len(resp.T) == 0 {
		return gpd.Domain{}, &gpd.DomainUnavailableError{Op: OpModelDomain, Err: fmt.Errorf("empty choice list in response")}
	}
	return gpd.Domain{XbjChoices: resp.Xbj, TChoices: resp.T}, nil
}

// ResolveForXbj fetches the t choices and q2 range compatible with xbj.
func (c *Client) ResolveForXbj(ctx context.Context, model gpd.Model, g gpd.GPD, xbj float64) (gpd.XbjUpdate, error) {
	var resp xbjResponse
	if err := c.getJSON(ctx, OpDomainForXbj, c.modelPath(model, g, "xbj", gpd.FormatValue(xbj)), &resp); err != nil {
		return gpd.XbjUpdate{}, &gpd.DomainUnavailableError{Op: OpDomainForXbj, Err: err}
	}
	if len(resp.T) == 0 {
		return gpd.XbjUpdate{}, &gpd.DomainUnavailableError{Op: OpDomainForXbj, Err: fmt.Errorf("empty t choice list in response")}
	}
	q2, err := parseQ2Range(resp.Q2MinMax)
	if err != nil {
		return gpd.XbjUpdate{}, &gpd.DomainUnavailableError{Op: OpDomainForXbj, Err: err}
	}
	return gpd.XbjUpdate{TChoices: resp.T, Q2Range: q2}, nil
}

// ResolveForT fetches the xbj choices and q2 range compatible with t.
func (c *Client) ResolveForT(ctx context.Context, model gpd.Model, g gpd.GPD, t float64) (gpd.TUpdate, error) {
	var resp tResponse
	if err := c.getJSON(ctx, OpDomainForT, c.modelPath(model, g, "t", gpd.FormatValue(t)), &resp); err != nil {
		return gpd.TUpdate{}, &gpd.DomainUnavailableError{Op: OpDomainForT, Err: err}
	}
	if len(resp.Xbj) == 0 {
		return gpd.TUpdate{}, &gpd.DomainUnavailableError{Op: OpDomainForT, Err: fmt.Errorf("empty xbj choice list in response")}
	}
	q2, err := parseQ2Range(resp.Q2MinMax)
	if err != nil {
		return gpd.TUpdate{}, &gpd.DomainUnavailableError{Op: OpDomainForT, Err: err}
	}
	return gpd.TUpdate{XbjChoices: resp.Xbj, Q2Range: q2}, nil
}

// FetchDataset fetches the full table for one parameter combination. An empty
// table is reported as a failure.
func (c *Client) FetchDataset(ctx context.Context, opts gpd.Options) ([]gpd.DataPoint, error) {
	path := c.modelPath(opts.Model, opts.GPD,
		gpd.FormatValue(opts.Xbj), gpd.FormatValue(opts.T), gpd.FormatValue(opts.Q2))

	var points []gpd.DataPoint
	if err := c.getJSON(ctx, OpDataset, path, &points); err != nil {
		return nil, &gpd.DatasetFetchError{Options: opts, Err: err}
	}
	if len(points) == 0 {
		return nil, &gpd.DatasetFetchError{Options: opts, Err: fmt.Errorf("%w: empty table", gpd.ErrDataNotFound)}
	}
	return points, nil
}

// modelPath builds /api/{model}/{gpd}/{segments...}
func (c *Client) modelPath(model gpd.Model, g gpd.GPD, segments ...string) string {
	parts := []string{c.baseURL, "api", url.PathEscape(model.Slug()), url.PathEscape(string(g))}
	for _, s := range segments {
		parts = append(parts, url.PathEscape(s))
	}
	return strings.Join(parts, "/")
}

func (c *Client) getJSON(ctx context.Context, op, target string, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		rtt := time.Since(start).Seconds() * 1000
		c.logger.LogRequest(op, target, err == nil, rtt, err)
		if c.metrics != nil {
			m := metrics.Metric{Timestamp: start, Operation: op, URL: target, Success: err == nil, RTTMs: rtt}
			if err != nil {
				m.Error = err.Error()
			}
			c.metrics.Record(m)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &errors.HTTPStatusError{StatusCode: resp.StatusCode, URL: target}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseQ2Range(minMax []float64) (gpd.Q2Range, error) {
	if len(minMax) != 2 {
		return gpd.Q2Range{}, fmt.Errorf("q2MinMax must have 2 values, got %d", len(minMax))
	}
	if minMax[0] > minMax[1] {
		return gpd.Q2Range{}, fmt.Errorf("q2MinMax is inverted: %g > %g", minMax[0], minMax[1])
	}
	return gpd.Q2Range{Min: minMax[0], Max: minMax[1], Known: true}, nil
}
