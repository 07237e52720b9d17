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

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/concrnt-community"
	"github.com/totegamma/concrnt-community/jwt"
)

const (
	defaultTimeout = 3 * time.Second
	tokenTTL       = 5 * time.Minute
	wellKnownKey   = "wellknown"
)

// Client talks to a single community registry node.
type Client struct {
	client     *http.Client
	cache      *cache.Cache
	userAgent  string
	baseURL    string
	privateKey string
}

type Option func(*Client)

// WithPrivateKey signs mutating requests as the key's CCID.
func WithPrivateKey(privateKey string) Option {
	return func(c *Client) {
		c.privateKey = privateKey
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.client = httpClient
	}
}

// New creates a client for the node at baseURL, e.g. "https://example.com".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		client:    &http.Client{Timeout: defaultTimeout},
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: "concrnt-community-client",
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-200 answer from the node.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Message)
}

type idempotencyKey struct{}

// WithIdempotencyKey makes the next mutation sent with ctx safe to retry.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// GetServer returns the node's well-known document, cached for ten minutes.
func (c *Client) GetServer(ctx context.Context) (concrnt.WellKnownConcrnt, error) {
	if x, found := c.cache.Get(wellKnownKey); found {
		return x.(concrnt.WellKnownConcrnt), nil
	}

	var wkc concrnt.WellKnownConcrnt
	err := c.do(ctx, http.MethodGet, "/.well-known/concrnt", nil, "", &wkc)
	if err != nil {
		return concrnt.WellKnownConcrnt{}, fmt.Errorf("failed to get well-known concrnt: %w", err)
	}

	c.cache.Set(wellKnownKey, wkc, cache.DefaultExpiration)
	return wkc, nil
}

func (c *Client) CreateCommunity(ctx context.Context, id uint64, name, address string) (concrnt.Community, error) {
	var community concrnt.Community
	err := c.call(ctx, "net.concrnt.community.create", nil, concrnt.CreateCommunityRequest{
		ID:      id,
		Name:    name,
		Address: address,
	}, &community)
	return community, err
}

func (c *Client) CreateCouncil(ctx context.Context, id uint64, members []string) (concrnt.Community, error) {
	if members == nil {
		members = []string{}
	}
	var community concrnt.Community
	err := c.call(ctx, "net.concrnt.community.council", &id, concrnt.CreateCouncilRequest{Members: members}, &community)
	return community, err
}

func (c *Client) GetCommunity(ctx context.Context, id uint64) (concrnt.Community, error) {
	var community concrnt.Community
	err := c.call(ctx, "net.concrnt.community.get", &id, nil, &community)
	return community, err
}

func (c *Client) ListCommunities(ctx context.Context) ([]concrnt.Community, error) {
	var communities []concrnt.Community
	err := c.call(ctx, "net.concrnt.community.list", nil, nil, &communities)
	return communities, err
}

func (c *Client) LatestCommunityID(ctx context.Context) (uint64, error) {
	var latest concrnt.LatestCommunityID
	err := c.call(ctx, "net.concrnt.community.latest", nil, nil, &latest)
	return latest.ID, err
}

// History returns the raw event log of a community.
func (c *Client) History(ctx context.Context, id uint64) ([]json.RawMessage, error) {
	var events []json.RawMessage
	err := c.call(ctx, "net.concrnt.community.history", &id, nil, &events)
	return events, err
}

// call resolves endpoint from the node's well-known document and invokes it.
func (c *Client) call(ctx context.Context, endpoint string, id *uint64, body, response any) error {
	wkc, err := c.GetServer(ctx)
	if err != nil {
		return err
	}

	ep, ok := wkc.Endpoints[endpoint]
	if !ok {
		return fmt.Errorf("endpoint %s not found", endpoint)
	}

	path := ep.Template
	if id != nil {
		path = strings.ReplaceAll(path, "{id}", strconv.FormatUint(*id, 10))
	}

	token := ""
	if ep.Method != http.MethodGet && c.privateKey != "" {
		token, err = jwt.Issue(c.privateKey, wkc.Domain, tokenTTL)
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
	}

	return c.do(ctx, ep.Method, path, body, token, response)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, response any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key, ok := ctx.Value(idempotencyKey{}).(string); ok && key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
