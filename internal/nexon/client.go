package nexon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://open.api.nexon.com/maplestorytw/v1"

const (
	defaultTimeout    = 25 * time.Second
	defaultMaxConns   = 60
	maxDiagnosticBody = 500
)

// Client is a stateless wrapper over the single-character resource endpoints.
// Every call fails soft: a non-2xx status, timeout, or malformed body yields a
// nil record plus a classified *APIError; the client never panics and is safe
// for concurrent use by many goroutines.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Options configures a Client.
type Options struct {
	APIKey   string
	BaseURL  string        // defaults to DefaultBaseURL
	Timeout  time.Duration // total per-call timeout, defaults to 25s
	MaxConns int           // connection-level cap per host, defaults to 60
}

// New creates a Client. APIKey is required.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("nexon: APIKey is required")
	}
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("nexon: invalid BaseURL: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  opts.APIKey,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     maxConns,
				MaxIdleConnsPerHost: maxConns,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// ResolveOCID resolves a display name to the character's stable id.
// The name is NFC-normalized first; user-entered CJK names occasionally arrive
// in decomposed form and the API matches the composed spelling only.
func (c *Client) ResolveOCID(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("character_name", norm.NFC.String(strings.TrimSpace(name)))

	var out ocidResponse
	if err := c.getJSON(ctx, "/id", q, &out); err != nil {
		return "", err
	}
	if out.OCID == "" {
		return "", &APIError{Kind: KindMalformed, Status: http.StatusOK, Endpoint: "/id"}
	}
	return out.OCID, nil
}

// Basic fetches the profile record for an ocid.
func (c *Client) Basic(ctx context.Context, ocid string) (*CharacterBasic, error) {
	q := url.Values{}
	q.Set("ocid", ocid)

	var out CharacterBasic
	if err := c.getJSON(ctx, "/character/basic", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stat fetches the stat snapshot for an ocid. An empty date means the most
// recent snapshot.
func (c *Client) Stat(ctx context.Context, ocid, date string) (*StatResponse, error) {
	q := url.Values{}
	q.Set("ocid", ocid)
	if date != "" {
		q.Set("date", date)
	}

	var out StatResponse
	if err := c.getJSON(ctx, "/character/stat", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ItemEquipment fetches the equipment snapshot (base set plus presets) for an
// ocid. An empty date means the most recent snapshot.
func (c *Client) ItemEquipment(ctx context.Context, ocid, date string) (*EquipmentResponse, error) {
	q := url.Values{}
	q.Set("ocid", ocid)
	if date != "" {
		q.Set("date", date)
	}

	var out EquipmentResponse
	if err := c.getJSON(ctx, "/character/item-equipment", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GuildID resolves a guild name within a world to its stable id.
func (c *Client) GuildID(ctx context.Context, guildName, world string) (string, error) {
	q := url.Values{}
	q.Set("guild_name", norm.NFC.String(strings.TrimSpace(guildName)))
	q.Set("world_name", world)

	var out guildIDResponse
	if err := c.getJSON(ctx, "/guild/id", q, &out); err != nil {
		return "", err
	}
	if out.OguildID == "" {
		return "", &APIError{Kind: KindMalformed, Status: http.StatusOK, Endpoint: "/guild/id"}
	}
	return out.OguildID, nil
}

// GuildBasic fetches a guild profile, including the member roster.
func (c *Client) GuildBasic(ctx context.Context, oguildID string) (*GuildBasic, error) {
	q := url.Values{}
	q.Set("oguild_id", oguildID)

	var out GuildBasic
	if err := c.getJSON(ctx, "/guild/basic", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getJSON performs one GET and decodes the body, classifying every failure
// into the APIError taxonomy. This is the only place response leniency lives.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &APIError{Kind: KindTransient, Endpoint: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-nxopen-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and transport failures are all retryable.
		return &APIError{Kind: KindTransient, Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &APIError{Kind: KindTransient, Status: resp.StatusCode, Endpoint: path, Body: truncate(body)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		// The API answers 400 for unknown names and dates without data.
		return &APIError{Kind: KindNotFound, Status: resp.StatusCode, Endpoint: path, Body: truncate(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Kind: KindMalformed, Status: resp.StatusCode, Endpoint: path, Body: truncate(body), Err: err}
	}
	return nil
}

func truncate(b []byte) string {
	if len(b) > maxDiagnosticBody {
		return string(b[:maxDiagnosticBody])
	}
	return string(b)
}
