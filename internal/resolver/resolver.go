package resolver

import (
	"context"
	"fmt"

	"github.com/DrZoddiak/ore-monitor/internal/ore"
)

// Catalog is the slice of the catalog client the resolver needs. Tests
// substitute a fake.
type Catalog interface {
	GetProject(ctx context.Context, pluginID string) (*ore.Project, error)
	ListVersions(ctx context.Context, pluginID string, limit, offset int) (*ore.VersionList, error)
	GetVersion(ctx context.Context, pluginID, name string) (*ore.Version, error)
}

// Request is the user-supplied identifier tuple. Exactly three shapes are
// valid: plugin only, plugin+versions, plugin+versions+name. VersionName
// without Versions is a caller contract error, not a resolver error.
type Request struct {
	PluginID    string
	Versions    bool
	VersionName string

	// Window over the version listing, used by the Versions shape only.
	// Limit <= 0 means the full listing.
	Limit  int
	Offset int
}

// Resolution is the outcome of a resolve. Exactly one of the three shapes is
// populated: Project+Promoted for a plugin lookup (Promoted nil when the
// plugin has no promoted release — that is not an error), VersionList for a
// listing, Version for a single named version.
type Resolution struct {
	Project  *ore.Project
	Promoted *ore.PromotedVersion

	VersionList []ore.Version
	Version     *ore.Version
}

// Resolver routes an identifier tuple to the right catalog lookups. It is a
// pure routing layer: PluginNotFound/VersionNotFound pass through unchanged
// and no error kinds are added.
type Resolver struct {
	catalog Catalog
}

// New creates a resolver over the given catalog.
func New(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve dispatches on the request shape.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	switch {
	case req.PluginID == "":
		return nil, fmt.Errorf("resolver: plugin id is required")
	case !req.Versions && req.VersionName != "":
		return nil, fmt.Errorf("resolver: version name %q given without versions mode", req.VersionName)
	case req.Versions && req.VersionName != "":
		return r.resolveNamedVersion(ctx, req.PluginID, req.VersionName)
	case req.Versions:
		return r.resolveVersionList(ctx, req)
	default:
		return r.resolvePlugin(ctx, req.PluginID)
	}
}

// resolvePlugin fetches the summary and its promoted version, if any.
func (r *Resolver) resolvePlugin(ctx context.Context, pluginID string) (*Resolution, error) {
	project, err := r.catalog.GetProject(ctx, pluginID)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Project: project}
	if promoted, ok := project.PromotedFor(0); ok {
		res.Promoted = &promoted
	}
	return res, nil
}

// resolveVersionList pages through the catalog until the requested window is
// satisfied or the listing is exhausted. The caller never sees pagination.
func (r *Resolver) resolveVersionList(ctx context.Context, req Request) (*Resolution, error) {
	var (
		collected []ore.Version
		offset    = req.Offset
	)
	if offset < 0 {
		offset = 0
	}

	want := req.Limit // <= 0 means everything
	for {
		pageLimit := ore.MaxLimit
		if want > 0 && want-len(collected) < pageLimit {
			pageLimit = want - len(collected)
		}

		page, err := r.catalog.ListVersions(ctx, req.PluginID, pageLimit, offset)
		if err != nil {
			return nil, err
		}
		collected = append(collected, page.Result...)
		offset += len(page.Result)

		if want > 0 && len(collected) >= want {
			collected = collected[:want]
			break
		}
		// Short or empty page means the catalog is exhausted.
		if len(page.Result) == 0 || len(page.Result) < page.Pagination.Limit {
			break
		}
	}

	return &Resolution{VersionList: collected}, nil
}

// resolveNamedVersion fetches one concrete version record.
func (r *Resolver) resolveNamedVersion(ctx context.Context, pluginID, name string) (*Resolution, error) {
	version, err := r.catalog.GetVersion(ctx, pluginID, name)
	if err != nil {
		return nil, err
	}
	return &Resolution{Version: version}, nil
}
