package blocklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultBaseURL is the official site hosting the blocklist pages.
const DefaultBaseURL = "https://maplestory.beanfun.com"

const (
	pageSize     = 100
	defaultDelay = 250 * time.Millisecond
	userAgent    = "Mozilla/5.0"
)

// Record is one listing row as the site returns it. TotalNum rides on every
// row of page 1 and drives pagination.
type Record struct {
	CharacterName string      `json:"characterName"`
	Reason        string      `json:"reason"`
	BlockDate     string      `json:"blockDate"`
	UnblockDate   string      `json:"unBlockedDate"`
	TotalNum      json.Number `json:"totalNum"`
}

type pageResponse struct {
	ListData []Record `json:"listData"`
}

// authError marks a data request the site rejected for a stale or missing
// session; the caller re-establishes once and retries.
type authError struct {
	status int
}

func (e *authError) Error() string {
	return fmt.Sprintf("blocklist: session rejected (status %d)", e.status)
}

var (
	tokenRe     = regexp.MustCompile(`name="__RequestVerificationToken"[^>]*value="([^"]+)"`)
	tokenAltRe  = regexp.MustCompile(`value="([^"]+)"[^>]*name="__RequestVerificationToken"`)
	serverSelRe = regexp.MustCompile(`(?s)<select[^>]*id="ddlServer"[^>]*>(.*?)</select>`)
	optionRe    = regexp.MustCompile(`(?s)<option[^>]*value="([^"]*)"[^>]*>(.*?)</option>`)
)

// Client scrapes the date-partitioned blocklist. The same cookie jar must
// carry both the initial page read and every data request, or the site
// answers 400; Establish wires that up and extracts the anti-forgery token
// and the server id for the configured server name.
//
// Pagination is sequential with a fixed delay between requests. The client
// is not safe for concurrent use; the sync pipeline that owns it is
// single-threaded by design.
type Client struct {
	base       string
	serverName string
	hc         *http.Client
	delay      time.Duration
	log        *slog.Logger

	token    string
	serverID string
}

// ClientOptions configures a Client. ServerName is required; it must match
// one of the site's server dropdown labels exactly.
type ClientOptions struct {
	ServerName string
	BaseURL    string
	Timeout    time.Duration
	Delay      time.Duration
	Logger     *slog.Logger
}

// NewClient creates a client with its own cookie-carrying HTTP session.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.ServerName == "" {
		return nil, fmt.Errorf("blocklist: server name required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Delay <= 0 {
		opts.Delay = defaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	jar, err := newCookieJar()
	if err != nil {
		return nil, fmt.Errorf("blocklist: cookie jar: %w", err)
	}
	return &Client{
		base:       strings.TrimRight(opts.BaseURL, "/"),
		serverName: opts.ServerName,
		hc:         &http.Client{Timeout: opts.Timeout, Jar: jar},
		delay:      opts.Delay,
		log:        opts.Logger,
	}, nil
}

// ServerID returns the partition id resolved by Establish, or "" before it.
func (c *Client) ServerID() string { return c.serverID }

// Establish reads the listing page and pulls out the anti-forgery token and
// the server id matching the configured server name. Idempotent; call again
// to refresh a rejected session.
func (c *Client) Establish(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/blacklist", nil)
	if err != nil {
		return fmt.Errorf("blocklist: establish: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", c.base+"/blacklist")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("blocklist: establish: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("blocklist: establish: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("blocklist: establish: read: %w", err)
	}
	html := string(body)

	token := firstGroup(tokenRe, html)
	if token == "" {
		token = firstGroup(tokenAltRe, html)
	}
	if token == "" {
		return fmt.Errorf("blocklist: establish: anti-forgery token not found, page layout may have changed")
	}

	serverID, err := findServerID(html, c.serverName)
	if err != nil {
		return err
	}

	c.token = token
	c.serverID = serverID
	c.log.Debug("blocklist session established", "server", c.serverName, "server_id", serverID)
	return nil
}

// FetchDay returns every record for one day, concatenated across pages.
// date must be in the site's YYYY/MM/DD form. A rejected session triggers
// one Establish-and-retry of the offending page before the error surfaces.
func (c *Client) FetchDay(ctx context.Context, date string) ([]Record, error) {
	if c.token == "" || c.serverID == "" {
		if err := c.Establish(ctx); err != nil {
			return nil, err
		}
	}

	first, err := c.fetchPage(ctx, date, 1)
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, nil
	}

	total, _ := first[0].TotalNum.Int64()
	pages := int(math.Ceil(float64(total) / pageSize))
	if pages < 1 {
		pages = 1
	}

	out := first
	for p := 2; p <= pages; p++ {
		page, err := c.fetchPage(ctx, date, p)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
	}
	return out, nil
}

// fetchPage posts one page. Sessions can expire at any point in a day's
// pagination, so the single re-establish-and-retry lives here rather than
// on the first page only.
func (c *Client) fetchPage(ctx context.Context, date string, page int) ([]Record, error) {
	out, err := c.postPage(ctx, date, page)
	var ae *authError
	if !errors.As(err, &ae) {
		return out, err
	}
	c.log.Warn("blocklist session rejected, re-establishing", "status", ae.status, "page", page)
	if err := c.Establish(ctx); err != nil {
		return nil, err
	}
	return c.postPage(ctx, date, page)
}

func (c *Client) postPage(ctx context.Context, date string, page int) ([]Record, error) {
	form := url.Values{
		"blockDate":                  {date},
		"serverId":                   {c.serverID},
		"page":                       {fmt.Sprint(page)},
		"__RequestVerificationToken": {c.token},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/blacklist?handler=BlockList", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("blocklist: page %d: %w", page, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", c.base+"/blacklist")
	req.Header.Set("Origin", c.base)
	req.Header.Set("X-CSRF-TOKEN", c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blocklist: page %d: %w", page, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return nil, &authError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("blocklist: page %d: status %d body=%q", page, resp.StatusCode, body)
	}

	var pr pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("blocklist: page %d: decode: %w", page, err)
	}

	// Politeness delay after every data request.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.delay):
	}
	return pr.ListData, nil
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func findServerID(html, serverName string) (string, error) {
	sel := serverSelRe.FindStringSubmatch(html)
	if sel == nil {
		return "", fmt.Errorf("blocklist: establish: server dropdown not found, page layout may have changed")
	}
	for _, opt := range optionRe.FindAllStringSubmatch(sel[1], -1) {
		if strings.TrimSpace(stripTags(opt[2])) == serverName && opt[1] != "" {
			return opt[1], nil
		}
	}
	return "", fmt.Errorf("blocklist: establish: server %q not in dropdown", serverName)
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

func newCookieJar() (http.CookieJar, error) {
	return cookiejar.New(nil)
}
