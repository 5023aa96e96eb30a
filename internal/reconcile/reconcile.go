package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/DrZoddiak/ore-monitor/internal/inventory"
	"github.com/DrZoddiak/ore-monitor/internal/ore"
)

// Status classifies one local artifact against catalog truth.
type Status string

const (
	// StatusUpToDate means the local version matches the remote reference
	// version, or the catalog knows nothing newer.
	StatusUpToDate Status = "up-to-date"
	// StatusOutdated means the catalog has a newer reference version.
	StatusOutdated Status = "outdated"
	// StatusAhead means the local version is newer than the remote
	// reference version.
	StatusAhead Status = "ahead"
	// StatusUnknown means the plugin id is unknown to the catalog.
	StatusUnknown Status = "unknown-to-catalog"
	// StatusUnparseable means no plugin id or version could be extracted
	// from the archive. No network call is made for these.
	StatusUnparseable Status = "unparseable"
)

// Policy selects which remote version an artifact is compared against.
type Policy string

const (
	// PolicyPromoted compares against the promoted version matching the
	// artifact's Sponge API generation.
	PolicyPromoted Policy = "promoted"
	// PolicyLatest compares against the head of the version listing.
	PolicyLatest Policy = "latest"
)

// Catalog is the slice of the catalog client the engine needs.
type Catalog interface {
	GetProject(ctx context.Context, pluginID string) (*ore.Project, error)
	ListVersions(ctx context.Context, pluginID string, limit, offset int) (*ore.VersionList, error)
}

// Result is the reconciliation outcome for one artifact.
type Result struct {
	Artifact inventory.Artifact
	Project  *ore.Project // nil when the plugin id is unknown to the catalog
	Status   Status
	// Remote is the reference version compared against; empty for
	// Unparseable and Unknown.
	Remote string
	// Newer is the newer version name when Status is Outdated.
	Newer string
}

// Options tunes an Engine. Zero values mean promoted policy with the default
// fan-out.
type Options struct {
	Policy      Policy
	Concurrency int
	Logger      *log.Logger
}

// Engine diffs local artifacts against the catalog. Each distinct plugin id
// is fetched exactly once per run; lookups fan out concurrently up to the
// configured bound.
type Engine struct {
	catalog     Catalog
	policy      Policy
	concurrency int
	log         *log.Logger
}

// New creates a reconciliation engine.
func New(catalog Catalog, opts Options) *Engine {
	if opts.Policy == "" {
		opts.Policy = PolicyPromoted
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Engine{
		catalog:     catalog,
		policy:      opts.Policy,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
}

// lookup is the run-scoped cache entry for one plugin id.
type lookup struct {
	project *ore.Project
	latest  string
	err     error
}

// Check classifies every artifact. Results keep the artifacts' order.
// Unknown plugin ids are data, not faults; any other catalog failure aborts
// the run.
func (e *Engine) Check(ctx context.Context, artifacts []inventory.Artifact) ([]Result, error) {
	// One fetch per distinct plugin id for the whole run.
	ids := make([]string, 0, len(artifacts))
	seen := make(map[string]bool)
	for _, a := range artifacts {
		if !a.Parseable() {
			continue
		}
		if id := a.Descriptor.ModID; !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	lookups, err := e.fetchAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(artifacts))
	for _, a := range artifacts {
		results = append(results, e.classify(a, lookups))
	}
	return results, nil
}

// fetchAll resolves every distinct plugin id with bounded fan-out.
func (e *Engine) fetchAll(ctx context.Context, ids []string) (map[string]lookup, error) {
	lookups := make(map[string]lookup, len(ids))

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, e.concurrency)
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			l := e.fetch(ctx, id)
			mu.Lock()
			lookups[id] = l
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	for id, l := range lookups {
		if l.err != nil && !errors.Is(l.err, ore.ErrPluginNotFound) {
			e.log.Error("Catalog lookup failed", "plugin", id, "error", l.err)
			return nil, l.err
		}
	}
	return lookups, nil
}

// fetch grabs the project summary and, under the latest policy, the head of
// the version listing.
func (e *Engine) fetch(ctx context.Context, id string) lookup {
	project, err := e.catalog.GetProject(ctx, id)
	if err != nil {
		return lookup{err: err}
	}

	l := lookup{project: project}
	if e.policy == PolicyLatest {
		page, err := e.catalog.ListVersions(ctx, id, 1, 0)
		if err != nil && !errors.Is(err, ore.ErrPluginNotFound) {
			return lookup{project: project, err: err}
		}
		if err == nil && len(page.Result) > 0 {
			l.latest = page.Result[0].Name
		}
	}
	return l
}

// classify applies the classification policy to one artifact.
func (e *Engine) classify(a inventory.Artifact, lookups map[string]lookup) Result {
	if !a.Parseable() {
		return Result{Artifact: a, Status: StatusUnparseable}
	}

	l, ok := lookups[a.Descriptor.ModID]
	if !ok || errors.Is(l.err, ore.ErrPluginNotFound) {
		return Result{Artifact: a, Status: StatusUnknown}
	}

	remote := e.reference(a, l)
	if remote == "" {
		// The plugin exists but the catalog promotes nothing; nothing newer
		// is known.
		return Result{Artifact: a, Project: l.project, Status: StatusUpToDate}
	}

	res := Result{Artifact: a, Project: l.project, Remote: remote}
	switch compareVersions(a.Descriptor.Version, remote) {
	case 0:
		res.Status = StatusUpToDate
	case 1:
		res.Status = StatusAhead
	default:
		res.Status = StatusOutdated
		res.Newer = remote
	}
	return res
}

// reference picks the remote version to compare against per policy.
func (e *Engine) reference(a inventory.Artifact, l lookup) string {
	if e.policy == PolicyLatest && l.latest != "" {
		return l.latest
	}
	promoted, ok := l.project.PromotedFor(a.Descriptor.SpongeMajor())
	if !ok {
		return ""
	}
	return promoted.Version
}

// compareVersions orders two version names semantically when both parse as
// semver. Otherwise the catalog's word is taken: anything different from the
// reference version counts as older (-1). Returns -1, 0 or 1.
func compareVersions(local, remote string) int {
	if local == remote {
		return 0
	}
	lv, lerr := semver.NewVersion(strings.TrimPrefix(local, "v"))
	rv, rerr := semver.NewVersion(strings.TrimPrefix(remote, "v"))
	if lerr != nil || rerr != nil {
		return -1
	}
	return lv.Compare(rv)
}
