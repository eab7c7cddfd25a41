package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/totegamma/greenledger"
	"github.com/totegamma/greenledger/jwt"
)

const (
	defaultTimeout = 3 * time.Second
	tokenLifetime  = 5 * time.Minute
)

// Record mirrors the server representation of a registry record.
type Record[P any] struct {
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Payload   P      `json:"payload"`
	CreatedAt uint64 `json:"createdAt"`
	Verified  bool   `json:"verified"`
}

type Stats struct {
	TotalRecords    uint64 `json:"totalRecords"`
	VerifiedRecords uint64 `json:"verifiedRecords"`
	CategoryCount   uint64 `json:"categoryCount"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Message)
}

// Client talks to one registry server. Verified records never change, so
// they are cached; everything else is fetched on every call.
type Client struct {
	client     *http.Client
	cache      *cache.Cache
	userAgent  string
	baseURL    string
	privateKey string
	address    string
}

type Option func(*Client)

// WithIdentity signs privileged requests with privateKey (hex secp256k1).
func WithIdentity(privateKey string) Option {
	return func(c *Client) {
		c.privateKey = privateKey
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.client = httpClient
	}
}

// New creates a client for server, either a bare domain or a full base url.
func New(server string, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSuffix(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}

	c := &Client{
		client:    &http.Client{Timeout: defaultTimeout},
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: "greenledger-client",
		baseURL:   baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.privateKey != "" {
		address, err := greenledger.PrivKeyToAddr(c.privateKey, greenledger.AddressPrefix)
		if err != nil {
			return nil, err
		}
		c.address = address
	}

	return c, nil
}

// Address is the requester address of the configured identity.
func (c *Client) Address() string {
	return c.address
}

func (c *Client) do(ctx context.Context, method, path string, body any, auth bool, response any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if auth {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if response == nil {
		return nil
	}
	err = json.NewDecoder(resp.Body).Decode(response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.privateKey == "" {
		return "", fmt.Errorf("client has no identity")
	}

	wk, err := c.WellKnown(ctx)
	if err != nil {
		return "", err
	}

	return jwt.Create(jwt.Claims{
		Issuer:         c.address,
		Subject:        "greenledger",
		Audience:       wk.Domain,
		IssuedAt:       strconv.FormatInt(time.Now().Unix(), 10),
		ExpirationTime: strconv.FormatInt(time.Now().Add(tokenLifetime).Unix(), 10),
	}, c.privateKey)
}

type ServerInfo struct {
	Version    string                          `json:"version"`
	Domain     string                          `json:"domain"`
	CSID       string                          `json:"csid"`
	Registries []string                        `json:"registries"`
	Endpoints  map[string]greenledger.Endpoint `json:"endpoints"`
}

func (c *Client) WellKnown(ctx context.Context) (ServerInfo, error) {
	cacheKey := "wellknown"
	if x, found := c.cache.Get(cacheKey); found {
		return x.(ServerInfo), nil
	}

	var wk ServerInfo
	if err := c.do(ctx, http.MethodGet, "/.well-known/greenledger", nil, false, &wk); err != nil {
		return ServerInfo{}, fmt.Errorf("failed to get well-known: %v", err)
	}

	c.cache.Set(cacheKey, wk, cache.DefaultExpiration)
	return wk, nil
}

func (c *Client) Create(ctx context.Context, registry string, request any) (uint64, error) {
	var created struct {
		ID uint64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/"+registry, request, false, &created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

func (c *Client) Verify(ctx context.Context, registry string, id uint64) error {
	err := c.do(ctx, http.MethodPost, "/"+registry+"/"+strconv.FormatUint(id, 10)+"/verify", nil, true, nil)
	if err != nil {
		return err
	}
	c.cache.Delete(recordCacheKey(registry, id))
	return nil
}

func (c *Client) Restore(ctx context.Context, registry string) error {
	return c.do(ctx, http.MethodPost, "/"+registry+"/restore", nil, true, nil)
}

func (c *Client) Stats(ctx context.Context, registry string) (Stats, error) {
	var stats Stats
	err := c.do(ctx, http.MethodGet, "/"+registry+"/stats", nil, false, &stats)
	return stats, err
}

func recordCacheKey(registry string, id uint64) string {
	return "record:" + greenledger.ComposeRecordURI(registry, id)
}

// Get fetches a record. found is false when the server has no record with id.
func Get[P any](ctx context.Context, c *Client, registry string, id uint64) (record Record[P], found bool, err error) {
	cacheKey := recordCacheKey(registry, id)
	if x, ok := c.cache.Get(cacheKey); ok {
		if cached, ok := x.(Record[P]); ok {
			return cached, true, nil
		}
	}

	err = c.do(ctx, http.MethodGet, "/"+registry+"/"+strconv.FormatUint(id, 10), nil, false, &record)
	if err != nil {
		if se, ok := err.(*StatusError); ok && se.StatusCode == http.StatusNotFound {
			return Record[P]{}, false, nil
		}
		return Record[P]{}, false, err
	}

	if record.Verified {
		slog.DebugContext(ctx, "caching verified record", slog.String("uri", cacheKey), slog.String("module", "client"))
		c.cache.Set(cacheKey, record, cache.NoExpiration)
	}
	return record, true, nil
}
