package ore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
)

const (
	// DefaultBaseURL is the catalog's read API.
	DefaultBaseURL = "https://ore.spongepowered.org/api/v2"
	// DefaultDownloadURL is the site root. The API exposes no download link,
	// so artifacts are fetched through the same route a browser would use.
	DefaultDownloadURL = "https://ore.spongepowered.org"

	// DefaultLimit and MaxLimit bound a result page. Out-of-range limits are
	// clamped, never rejected.
	DefaultLimit = 25
	MaxLimit     = 100

	userAgent = "oremon (Ore catalog client)"
)

// Options configures a Client. Zero values fall back to defaults; the API
// key is optional and only gates the member-only endpoints.
type Options struct {
	BaseURL        string
	DownloadURL    string
	APIKey         string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	RetryCount     int
	RetryWait      time.Duration
	RetryMaxWait   time.Duration
	Logger         *log.Logger
}

// Client is a typed client for the catalog's read endpoints. It owns
// pagination parameters, session auth, and network-failure classification;
// retry with backoff for transient and 5xx failures happens once in the
// transport, not per operation.
type Client struct {
	http        *resty.Client
	baseURL     string
	downloadURL string
	apiKey      string
	log         *log.Logger

	mu      sync.Mutex
	session *Session
}

// NewClient creates a catalog client. The key, if any, is passed in
// explicitly so tests can construct isolated clients.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.DownloadURL == "" {
		opts.DownloadURL = DefaultDownloadURL
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RetryCount <= 0 {
		opts.RetryCount = 3
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: opts.ConnectTimeout,
	}

	rc := resty.New().
		SetTransport(transport).
		SetTimeout(opts.RequestTimeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	// Retry transport failures and 5xx only. 4xx is a terminal answer from
	// the catalog and a cancelled context must not be retried either.
	rc.AddRetryCondition(func(r *resty.Response, err error) bool {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		if err != nil {
			return true
		}
		return r.StatusCode() >= http.StatusInternalServerError
	})

	return &Client{
		http:        rc,
		baseURL:     opts.BaseURL,
		downloadURL: opts.DownloadURL,
		apiKey:      opts.APIKey,
		log:         opts.Logger,
	}
}

// HasAPIKey reports whether a key was configured. Anonymous clients can use
// every read endpoint except the member-only ones.
func (c *Client) HasAPIKey() bool { return c.apiKey != "" }

// ensureSession authenticates against the catalog once and caches the
// session for the lifetime of the client. Without a key this still succeeds
// and yields a public session.
func (c *Client) ensureSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && time.Until(c.session.Expires) > time.Minute {
		return c.session, nil
	}

	req := c.http.R().SetContext(ctx).SetResult(&Session{})
	if c.apiKey != "" {
		req.SetHeader("Authorization", "OreApi apikey="+c.apiKey)
	}

	resp, err := req.Post(c.baseURL + "/authenticate")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	switch {
	case resp.StatusCode() == http.StatusOK:
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return nil, fmt.Errorf("%w: catalog rejected the configured API key", ErrAuthenticationRequired)
	case resp.StatusCode() >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: authenticate returned %d", ErrCatalogUnavailable, resp.StatusCode())
	default:
		return nil, fmt.Errorf("authenticate returned unexpected status %d", resp.StatusCode())
	}

	session := resp.Result().(*Session)
	if session.SessionID == "" {
		return nil, fmt.Errorf("authenticate returned an empty session")
	}
	c.session = session
	c.log.Debug("Authenticated against catalog", "expires", session.Expires)
	return session, nil
}

// get performs an authenticated GET against the API and fills result,
// translating transport and 5xx failures. 404 handling is left to the
// caller, which knows which identifier was missing.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) (*resty.Response, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "OreApi session="+session.SessionID)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return resp, fmt.Errorf("%w: %s returned %d", ErrCatalogUnavailable, path, resp.StatusCode())
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return resp, fmt.Errorf("%w: %s", ErrAuthenticationRequired, path)
	}
	return resp, nil
}

// SortStrategy values accepted by Search. Anything else falls back to the
// catalog's default ordering.
var SortStrategies = []string{
	"stars", "downloads", "views", "newest", "updated",
	"only_relevance", "recent_downloads", "recent_views",
}

// SearchQuery holds every filter the paged project search accepts.
type SearchQuery struct {
	Query      string
	Categories []string
	Tags       []string
	Owner      string
	Sort       string
	Relevance  *bool
	Limit      int
	Offset     int
}

// clampPage normalizes a (limit, offset) pair. Limits outside the supported
// range are clamped, never rejected; a zero limit means the default page.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Search runs a paged project search. An offset past the end of the result
// set yields an empty page, not an error.
func (c *Client) Search(ctx context.Context, q SearchQuery) (*ProjectList, error) {
	limit, offset := clampPage(q.Limit, q.Offset)

	query := url.Values{}
	if q.Query != "" {
		query.Set("q", q.Query)
	}
	for _, cat := range q.Categories {
		query.Add("categories", cat)
	}
	for _, tag := range q.Tags {
		query.Add("tags", tag)
	}
	if q.Owner != "" {
		query.Set("owner", q.Owner)
	}
	if q.Sort != "" {
		query.Set("sort", q.Sort)
	}
	if q.Relevance != nil {
		query.Set("relevance", strconv.FormatBool(*q.Relevance))
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var list ProjectList
	resp, err := c.get(ctx, "/projects", query, &list)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("search returned unexpected status %d", resp.StatusCode())
	}
	if list.Result == nil {
		list.Result = []Project{}
	}
	return &list, nil
}

// GetProject looks a plugin up by id.
func (c *Client) GetProject(ctx context.Context, pluginID string) (*Project, error) {
	var project Project
	resp, err := c.get(ctx, "/projects/"+url.PathEscape(pluginID), nil, &project)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return &project, nil
	case http.StatusNotFound:
		return nil, newPluginNotFound(pluginID)
	default:
		return nil, fmt.Errorf("project lookup returned unexpected status %d", resp.StatusCode())
	}
}

// ListVersions returns one page of a plugin's versions, newest first.
func (c *Client) ListVersions(ctx context.Context, pluginID string, limit, offset int) (*VersionList, error) {
	limit, offset = clampPage(limit, offset)

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var list VersionList
	resp, err := c.get(ctx, "/projects/"+url.PathEscape(pluginID)+"/versions", query, &list)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		if list.Result == nil {
			list.Result = []Version{}
		}
		return &list, nil
	case http.StatusNotFound:
		return nil, newPluginNotFound(pluginID)
	default:
		return nil, fmt.Errorf("version listing returned unexpected status %d", resp.StatusCode())
	}
}

// GetVersion looks a single version up by (plugin id, version name). A 404
// here is ambiguous, so the project is probed once to tell a missing plugin
// apart from a missing version.
func (c *Client) GetVersion(ctx context.Context, pluginID, name string) (*Version, error) {
	var version Version
	path := "/projects/" + url.PathEscape(pluginID) + "/versions/" + url.PathEscape(name)
	resp, err := c.get(ctx, path, nil, &version)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return &version, nil
	case http.StatusNotFound:
		if _, err := c.GetProject(ctx, pluginID); err != nil {
			if errors.Is(err, ErrPluginNotFound) {
				return nil, err
			}
			return nil, newVersionNotFound(pluginID, name)
		}
		return nil, newVersionNotFound(pluginID, name)
	default:
		return nil, fmt.Errorf("version lookup returned unexpected status %d", resp.StatusCode())
	}
}

// Download streams a version's artifact from the site download route and
// returns the reader, the server-suggested filename (may be empty) and the
// artifact size when known. The caller owns closing the reader.
func (c *Client) Download(ctx context.Context, ns ProjectNamespace, versionName string) (io.ReadCloser, string, int64, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, "", 0, err
	}

	link := fmt.Sprintf("%s/%s/%s/versions/%s/download",
		c.downloadURL, url.PathEscape(ns.Owner), url.PathEscape(ns.Slug), url.PathEscape(versionName))

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "OreApi session="+session.SessionID).
		SetDoNotParseResponse(true).
		Get(link)
	if err != nil {
		return nil, "", 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusOK:
	case resp.StatusCode() == http.StatusNotFound:
		_ = resp.RawBody().Close()
		return nil, "", 0, newVersionNotFound(ns.Owner+"/"+ns.Slug, versionName)
	case resp.StatusCode() >= http.StatusInternalServerError:
		_ = resp.RawBody().Close()
		return nil, "", 0, fmt.Errorf("%w: download returned %d", ErrCatalogUnavailable, resp.StatusCode())
	default:
		_ = resp.RawBody().Close()
		return nil, "", 0, fmt.Errorf("download returned unexpected status %d", resp.StatusCode())
	}

	filename := filenameFromDisposition(resp.Header().Get("Content-Disposition"))
	size := resp.RawResponse.ContentLength
	c.log.Debug("Download started", "link", link, "filename", filename, "size", size)
	return resp.RawBody(), filename, size, nil
}

// ProjectStats is a member-only endpoint: daily download/view counts for a
// project the key owner is a member of. Calling it without a configured key
// fails fast instead of producing a confusing transport error.
func (c *Client) ProjectStats(ctx context.Context, pluginID string, from, to time.Time) (map[string]ProjectDayStats, error) {
	if !c.HasAPIKey() {
		return nil, fmt.Errorf("%w: project stats need an API key with is_subject_member", ErrAuthenticationRequired)
	}

	query := url.Values{}
	query.Set("fromDate", from.Format("2006-01-02"))
	query.Set("toDate", to.Format("2006-01-02"))

	stats := make(map[string]ProjectDayStats)
	resp, err := c.get(ctx, "/projects/"+url.PathEscape(pluginID)+"/stats", query, &stats)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return stats, nil
	case http.StatusNotFound:
		return nil, newPluginNotFound(pluginID)
	default:
		return nil, fmt.Errorf("project stats returned unexpected status %d", resp.StatusCode())
	}
}

// filenameFromDisposition parses the filename out of a Content-Disposition
// header, returning "" when absent or malformed.
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
