package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/gojq"

	"offersync/internal/config"
	"offersync/internal/member"
	"offersync/pkg/logging"
)

const (
	defaultMediaType   = "application/json"
	maxResponseBytes   = 16 << 20
	addPathSuffix      = "add_variant"
	removePathSuffix   = "remove_variant"
	listPathSuffix     = "product_variants"
	maxCountPayloadKey = "preorder_max_count"
)

// Client talks to the remote membership API.
type Client struct {
	baseURL     *url.URL
	authHeader  string
	accessKey   string
	memberField string
	pageSize    int
	maxPages    int
	maxCount    int
	membersCode *gojq.Code
	httpClient  *http.Client
	now         func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a client from the remote configuration section.
func NewClient(cfg config.RemoteConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("remote base URL is required")
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid remote base URL %q", cfg.BaseURL)
	}

	query := cfg.MembersQuery
	if strings.TrimSpace(query) == "" {
		query = config.DefaultMembersQuery
	}
	code, err := compileMembersQuery(query)
	if err != nil {
		return nil, err
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	c := &Client{
		baseURL:     baseURL,
		authHeader:  firstNonEmpty(cfg.AuthHeader, config.DefaultAuthHeader),
		accessKey:   cfg.AccessKey,
		memberField: firstNonEmpty(cfg.MemberField, config.DefaultMemberField),
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		maxCount:    cfg.MaxCountPerMember,
		membersCode: code,
		httpClient:  &http.Client{Timeout: timeout, Transport: transport},
		now:         time.Now,
	}
	if c.pageSize <= 0 {
		c.pageSize = 250
	}
	if c.maxPages <= 0 {
		c.maxPages = 1000
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ListMembers returns every raw member value currently associated with the
// resource, following page-number pagination until a short page, an empty
// page, a page identical to the previous one (server ignores paging) or the
// page limit.
func (c *Client) ListMembers(ctx context.Context, remoteID string) ([]any, error) {
	var (
		all      []any
		previous []any
	)
	for page := 1; page <= c.maxPages; page++ {
		values, err := c.listPage(ctx, remoteID, page)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			break
		}
		if previous != nil && reflect.DeepEqual(values, previous) {
			logging.Debug("RemoteClient", "Page %d of %s repeats page %d; server ignores paging", page, remoteID, page-1)
			break
		}
		all = append(all, values...)
		if len(values) < c.pageSize {
			break
		}
		previous = values
		if page == c.maxPages {
			logging.Warn("RemoteClient", "Stopped listing %s at page limit %d", remoteID, c.maxPages)
		}
	}
	logging.Debug("RemoteClient", "Listed %d members for %s", len(all), remoteID)
	return all, nil
}

func (c *Client) listPage(ctx context.Context, remoteID string, page int) ([]any, error) {
	endpoint := c.resourceURL(remoteID, listPathSuffix)
	q := endpoint.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.pageSize))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp := c.do(req)
	if resp.Err != nil {
		return nil, &transportError{err: resp.Err}
	}
	if !resp.OK() {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body), RetryAfter: resp.RetryAfter}
	}

	var decoded any
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode member listing for %s page %d: %w", remoteID, page, err)
	}
	return extractMembers(ctx, c.membersCode, decoded)
}

// AddMembers associates members with the resource.
func (c *Client) AddMembers(ctx context.Context, remoteID string, members []member.Member) Response {
	payload := map[string]any{c.memberField: member.Int64s(members)}
	if c.maxCount > 0 {
		payload[maxCountPayloadKey] = c.maxCount
	}
	return c.mutate(ctx, http.MethodPost, remoteID, addPathSuffix, payload)
}

// RemoveMembers dissociates members from the resource.
func (c *Client) RemoveMembers(ctx context.Context, remoteID string, members []member.Member) Response {
	payload := map[string]any{c.memberField: member.Int64s(members)}
	return c.mutate(ctx, http.MethodDelete, remoteID, removePathSuffix, payload)
}

func (c *Client) mutate(ctx context.Context, method, remoteID, suffix string, payload map[string]any) Response {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resourceURL(remoteID, suffix).String(), bytes.NewReader(body))
	if err != nil {
		return Response{Err: err}
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", defaultMediaType)

	resp := c.do(req)
	if resp.Err != nil {
		logging.Debug("RemoteClient", "%s %s failed: %v", method, req.URL.Path, resp.Err)
	} else {
		logging.Debug("RemoteClient", "%s %s -> %d", method, req.URL.Path, resp.StatusCode)
	}
	return resp
}

func (c *Client) do(req *http.Request) Response {
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return Response{Err: fmt.Errorf("read response body: %w", err)}
	}

	out := Response{StatusCode: httpResp.StatusCode, Body: data}
	out.RetryAfter, out.HasRetryAfter = parseRetryAfter(httpResp.Header.Get("Retry-After"), c.now())
	return out
}

func (c *Client) resourceURL(remoteID, suffix string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(remoteID) + "/" + suffix
	u.RawPath = ""
	return &u
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", defaultMediaType)
	if c.accessKey != "" {
		req.Header.Set(c.authHeader, c.accessKey)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
