package nce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/simflux/simflux/internal/domain/sim"
	"github.com/simflux/simflux/internal/domain/sim/valueobjects"
	"github.com/simflux/simflux/internal/shared/config"
	apperrors "github.com/simflux/simflux/internal/shared/errors"
	"github.com/simflux/simflux/internal/shared/logger"
)

const (
	defaultPageSize  = 100
	maxErrorBodySize = 4096
	maxBodySize      = 4 << 20
)

// Client talks to the provider API. All calls go through the same pipeline:
// rate limiter, bearer token, bounded retry with exponential backoff. 429
// responses honor Retry-After; a 401 triggers one token refresh before the
// call is declared an auth failure; other 4xx fail immediately.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenManager
	limiter    *rate.Limiter
	retry      RetryPolicy
	pageSize   int
	validate   *validator.Validate
	logger     logger.Interface
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.ProviderConfig, retryCfg config.RetryConfig, log logger.Interface) *Client {
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(rps) * 2
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		tokens:     NewTokenManager(cfg, log),
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		retry:      NewRetryPolicy(retryCfg),
		pageSize:   pageSize,
		validate:   validator.New(),
		logger:     log,
	}
}

// PageSize reports the page size requested from list endpoints.
func (c *Client) PageSize() int {
	return c.pageSize
}

// ListSims fetches one page of the SIM inventory. pageToken resumes a
// previous listing; an empty token starts from the beginning. The returned
// token is empty on the last page.
func (c *Client) ListSims(ctx context.Context, pageToken string) ([]sim.RemoteSim, string, error) {
	query := url.Values{"page_size": {strconv.Itoa(c.pageSize)}}
	if pageToken != "" {
		query.Set("page", pageToken)
	}

	var out simListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sims", query, nil, &out); err != nil {
		return nil, "", err
	}

	sims := make([]sim.RemoteSim, 0, len(out.Sims))
	for _, p := range out.Sims {
		sims = append(sims, p.toRemote())
	}
	return sims, out.NextPage, nil
}

// GetUsage fetches one page of usage records for an ICCID over [from, to).
func (c *Client) GetUsage(ctx context.Context, iccid string, from, to time.Time, pageToken string) ([]sim.UsageRecord, string, error) {
	query := url.Values{
		"start":     {from.UTC().Format(time.RFC3339)},
		"end":       {to.UTC().Format(time.RFC3339)},
		"page_size": {strconv.Itoa(c.pageSize)},
	}
	if pageToken != "" {
		query.Set("page", pageToken)
	}

	var out usageResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sims/"+url.PathEscape(iccid)+"/usage", query, nil, &out); err != nil {
		return nil, "", err
	}

	records := make([]sim.UsageRecord, 0, len(out.Usage))
	for _, p := range out.Usage {
		records = append(records, p.toRecord(iccid))
	}
	return records, out.NextPage, nil
}

// GetQuota fetches the current quota counters for an ICCID and quota type.
func (c *Client) GetQuota(ctx context.Context, iccid string, quotaType valueobjects.QuotaType) (total, used uint64, err error) {
	var out quotaResponse
	path := "/v1/sims/" + url.PathEscape(iccid) + "/quota/" + string(quotaType)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return 0, 0, err
	}
	return out.Total, out.Used, nil
}

// TopUpQuota adds volume to the quota of the given type.
func (c *Client) TopUpQuota(ctx context.Context, iccid string, quotaType valueobjects.QuotaType, volume uint64) error {
	path := "/v1/sims/" + url.PathEscape(iccid) + "/quota/" + string(quotaType) + "/topup"
	return c.do(ctx, http.MethodPost, path, nil, topUpRequest{Volume: volume}, nil)
}

// SendSMS submits an MT SMS to the SIM.
func (c *Client) SendSMS(ctx context.Context, iccid, payload string) error {
	path := "/v1/sims/" + url.PathEscape(iccid) + "/sms"
	return c.do(ctx, http.MethodPost, path, nil, smsRequest{Payload: payload}, nil)
}

// ResetConnectivity forces the SIM to re-register on the network.
func (c *Client) ResetConnectivity(ctx context.Context, iccid string) error {
	path := "/v1/sims/" + url.PathEscape(iccid) + "/reset"
	return c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

// SetStatus changes the provisioning state of the SIM.
func (c *Client) SetStatus(ctx context.Context, iccid string, status valueobjects.SimStatus) error {
	path := "/v1/sims/" + url.PathEscape(iccid) + "/status"
	return c.do(ctx, http.MethodPut, path, nil, statusRequest{Status: string(status)}, nil)
}

// do runs one logical API call through the retry pipeline.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return apperrors.NewInternalError("encode request body", err)
		}
	}

	refreshed := false
	err := c.retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(apperrors.NewTransientError("rate limiter interrupted", err))
		}
		return c.attempt(ctx, method, path, query, bodyBytes, out, &refreshed)
	})
	if err == nil {
		return nil
	}
	// Retry-After and context errors leak out of the backoff untyped.
	if apperrors.GetAppError(err) == nil {
		return apperrors.NewTransientError("provider unavailable", err)
	}
	return err
}

func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, body []byte, out any, refreshed *bool) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if apperrors.IsAuthError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return backoff.Permanent(apperrors.NewInternalError("create request", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewTransientError("provider request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if !*refreshed {
			*refreshed = true
			c.tokens.Invalidate()
			c.logger.Warnw("provider rejected token, refreshing once", "path", path)
			return apperrors.NewAuthError("token rejected by provider", nil)
		}
		return backoff.Permanent(apperrors.NewAuthError("token rejected after refresh", nil))

	case resp.StatusCode == http.StatusTooManyRequests:
		if secs := retryAfterSeconds(resp); secs > 0 {
			c.logger.Debugw("provider throttled request", "path", path, "retry_after_s", secs)
			return backoff.RetryAfter(secs)
		}
		return apperrors.NewTransientError("provider throttled request", nil)

	case resp.StatusCode >= http.StatusInternalServerError:
		return apperrors.NewTransientError(
			fmt.Sprintf("provider returned %d for %s", resp.StatusCode, path), nil)

	case resp.StatusCode >= http.StatusBadRequest:
		msg := readErrorMessage(resp.Body)
		return backoff.Permanent(apperrors.NewClientError(
			fmt.Sprintf("provider rejected %s %s: %d %s", method, path, resp.StatusCode, msg), nil))
	}

	if out == nil {
		return nil
	}
	return c.decodeInto(resp.Body, out)
}

// decodeInto parses and validates a response body. A body that does not
// match the expected shape is a permanent client error.
func (c *Client) decodeInto(body io.Reader, out any) error {
	if err := json.NewDecoder(io.LimitReader(body, maxBodySize)).Decode(out); err != nil {
		return backoff.Permanent(apperrors.NewClientError("malformed provider response", err))
	}
	if err := c.validate.Struct(out); err != nil {
		return backoff.Permanent(apperrors.NewClientError("unexpected provider response shape", err))
	}
	return nil
}

func retryAfterSeconds(resp *http.Response) int {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}

func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil {
		return ""
	}
	var apiErr apiError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return string(bytes.TrimSpace(data))
}
