package ore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrZoddiak/ore-monitor/internal/ore"
)

// testCatalog is a fake catalog server speaking just enough of the API.
type testCatalog struct {
	t        *testing.T
	mux      *http.ServeMux
	server   *httptest.Server
	requests atomic.Int64
}

func newTestCatalog(t *testing.T) *testCatalog {
	t.Helper()

	tc := &testCatalog{t: t, mux: http.NewServeMux()}
	tc.mux.HandleFunc("POST /authenticate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ore.Session{
			SessionID: "test-session",
			Expires:   time.Now().Add(time.Hour),
		})
	})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc.requests.Add(1)
		// Every API call after authenticate must carry the session.
		if r.URL.Path != "/authenticate" {
			assert.Equal(t, "OreApi session=test-session", r.Header.Get("Authorization"))
		}
		tc.mux.ServeHTTP(w, r)
	})

	tc.server = httptest.NewServer(handler)
	t.Cleanup(tc.server.Close)
	return tc
}

func (tc *testCatalog) client(opts ore.Options) *ore.Client {
	opts.BaseURL = tc.server.URL
	opts.DownloadURL = tc.server.URL
	if opts.RetryWait == 0 {
		opts.RetryWait = time.Millisecond
		opts.RetryMaxWait = 5 * time.Millisecond
	}
	return ore.NewClient(opts)
}

func projectJSON(id, owner, slug string, promoted ...ore.PromotedVersion) ore.Project {
	return ore.Project{
		PluginID:         id,
		Name:             id,
		Namespace:        ore.ProjectNamespace{Owner: owner, Slug: slug},
		PromotedVersions: promoted,
	}
}

func TestSearchClampsPagination(t *testing.T) {
	tc := newTestCatalog(t)
	tc.mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, strconv.Itoa(ore.MaxLimit), r.URL.Query().Get("limit"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		assert.Equal(t, "nucleus", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ore.ProjectList{
			Pagination: ore.Pagination{Limit: ore.MaxLimit, Offset: 0, Count: 1},
			Result:     []ore.Project{projectJSON("nucleus", "Nucleus", "nucleus")},
		})
	})

	list, err := tc.client(ore.Options{}).Search(context.Background(), ore.SearchQuery{
		Query:  "nucleus",
		Limit:  5000,
		Offset: -3,
	})
	require.NoError(t, err)
	require.Len(t, list.Result, 1)
	assert.Equal(t, "nucleus", list.Result[0].PluginID)
}

func TestSearchOffsetPastEndIsEmptyPage(t *testing.T) {
	tc := newTestCatalog(t)
	tc.mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ore.ProjectList{
			Pagination: ore.Pagination{Limit: 25, Offset: 9000, Count: 12},
		})
	})

	list, err := tc.client(ore.Options{}).Search(context.Background(), ore.SearchQuery{Offset: 9000})
	require.NoError(t, err)
	assert.NotNil(t, list.Result)
	assert.Empty(t, list.Result)
}

func TestGetProjectNotFound(t *testing.T) {
	tc := newTestCatalog(t)
	tc.mux.HandleFunc("GET /projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := tc.client(ore.Options{}).GetProject(context.Background(), "ghost")
	assert.ErrorIs(t, err, ore.ErrPluginNotFound)
	assert.ErrorContains(t, err, "ghost")
}

func TestGetVersionDistinguishesMissingPluginFromMissingVersion(t *testing.T) {
	tc := newTestCatalog(t)
	tc.mux.HandleFunc("GET /projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "nucleus" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(projectJSON("nucleus", "Nucleus", "nucleus"))
			return
		}
		http.NotFound(w, r)
	})
	tc.mux.HandleFunc("GET /projects/{id}/versions/{name}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	client := tc.client(ore.Options{})

	_, err := client.GetVersion(context.Background(), "nucleus", "9.9.9")
	assert.ErrorIs(t, err, ore.ErrVersionNotFound)
	assert.NotErrorIs(t, err, ore.ErrPluginNotFound)

	_, err = client.GetVersion(context.Background(), "ghost", "1.0.0")
	assert.ErrorIs(t, err, ore.ErrPluginNotFound)
}

func TestListVersionsNewestFirst(t *testing.T) {
	tc := newTestCatalog(t)
	tc.mux.HandleFunc("GET /projects/{id}/versions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ore.VersionList{
			Pagination: ore.Pagination{Limit: 10, Offset: 0, Count: 2},
			Result:     []ore.Version{{Name: "2.1.4"}, {Name: "2.1.0"}},
		})
	})

	list, err := tc.client(ore.Options{}).ListVersions(context.Background(), "nucleus", 10, 0)
	require.NoError(t, err)
	require.Len(t, list.Result, 2)
	assert.Equal(t, "2.1.4", list.Result[0].Name)
}

func TestServerErrorsAreRetriedThenSurface(t *testing.T) {
	tc := newTestCatalog(t)
	var attempts atomic.Int64
	tc.mux.HandleFunc("GET /projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := tc.client(ore.Options{RetryCount: 2}).GetProject(context.Background(), "nucleus")
	assert.ErrorIs(t, err, ore.ErrCatalogUnavailable)
	// Initial attempt plus two retries.
	assert.Equal(t, int64(3), attempts.Load())
}

func TestNotFoundIsNeverRetried(t *testing.T) {
	tc := newTestCatalog(t)
	var attempts atomic.Int64
	tc.mux.HandleFunc("GET /projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	})

	_, err := tc.client(ore.Options{RetryCount: 3}).GetProject(context.Background(), "ghost")
	assert.ErrorIs(t, err, ore.ErrPluginNotFound)
	assert.Equal(t, int64(1), attempts.Load())
}

func TestUnreachableCatalog(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // nothing is listening anymore

	client := ore.NewClient(ore.Options{
		BaseURL:      server.URL,
		RetryCount:   1,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 2 * time.Millisecond,
	})

	_, err := client.GetProject(context.Background(), "nucleus")
	assert.ErrorIs(t, err, ore.ErrUnreachable)
}

func TestAuthenticateSendsAPIKey(t *testing.T) {
	var sawKey atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /authenticate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "OreApi apikey=sekrit" {
			sawKey.Store(true)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ore.Session{
			SessionID: "keyed-session",
			Expires:   time.Now().Add(time.Hour),
		})
	})
	mux.HandleFunc("GET /projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(projectJSON("nucleus", "Nucleus", "nucleus"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := ore.NewClient(ore.Options{BaseURL: server.URL, APIKey: "sekrit"})
	_, err := client.GetProject(context.Background(), "nucleus")
	require.NoError(t, err)
	assert.True(t, sawKey.Load())
}

func TestProjectStatsWithoutKeyFailsFast(t *testing.T) {
	tc := newTestCatalog(t)

	_, err := tc.client(ore.Options{}).ProjectStats(context.Background(), "nucleus", time.Now().AddDate(0, 0, -7), time.Now())
	assert.ErrorIs(t, err, ore.ErrAuthenticationRequired)
	// The failure happens before any network traffic.
	assert.Equal(t, int64(0), tc.requests.Load())
}

func TestProjectStatsWithKey(t *testing.T) {
	tc := newTestCatalog(t)
	tc.mux.HandleFunc("GET /projects/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("fromDate"))
		assert.NotEmpty(t, r.URL.Query().Get("toDate"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]ore.ProjectDayStats{
			"2024-05-01": {Downloads: 12, Views: 80},
		})
	})

	stats, err := tc.client(ore.Options{APIKey: "sekrit"}).ProjectStats(
		context.Background(), "nucleus", time.Now().AddDate(0, 0, -7), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats["2024-05-01"].Downloads)
}

func TestDownloadStreamsArtifact(t *testing.T) {
	tc := newTestCatalog(t)
	tc.mux.HandleFunc("GET /{owner}/{slug}/versions/{name}/download", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Nucleus", r.PathValue("owner"))
		assert.Equal(t, "nucleus", r.PathValue("slug"))
		w.Header().Set("Content-Disposition", `attachment; filename="Nucleus-2.1.4.jar"`)
		_, _ = fmt.Fprint(w, "jar bytes")
	})

	body, filename, _, err := tc.client(ore.Options{}).Download(
		context.Background(), ore.ProjectNamespace{Owner: "Nucleus", Slug: "nucleus"}, "2.1.4")
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "Nucleus-2.1.4.jar", filename)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "jar bytes", string(data))
}

func TestDownloadMissingVersion(t *testing.T) {
	tc := newTestCatalog(t)
	tc.mux.HandleFunc("GET /{owner}/{slug}/versions/{name}/download", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, _, _, err := tc.client(ore.Options{}).Download(
		context.Background(), ore.ProjectNamespace{Owner: "Nucleus", Slug: "nucleus"}, "9.9.9")
	assert.ErrorIs(t, err, ore.ErrVersionNotFound)
}
