package ore

import (
	"strconv"
	"strings"
	"time"
)

// Pagination describes the window the catalog returned. Count is the total
// number of results available for the query, not the page size.
type Pagination struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Count  int64 `json:"count"`
}

// ProjectNamespace identifies a project on the site (owner/slug), which is
// what the download route is keyed by.
type ProjectNamespace struct {
	Owner string `json:"owner"`
	Slug  string `json:"slug"`
}

// PromotedVersionTag carries platform metadata for a promoted version, e.g.
// {name: "Sponge", display_data: "7.3"}.
type PromotedVersionTag struct {
	Name             string `json:"name"`
	Data             string `json:"data,omitempty"`
	DisplayData      string `json:"display_data,omitempty"`
	MinecraftVersion string `json:"minecraft_version,omitempty"`
}

// PromotedVersion is a version the catalog marks as recommended. A project
// keeps at most one per platform generation.
type PromotedVersion struct {
	Version string               `json:"version"`
	Tags    []PromotedVersionTag `json:"tags"`
}

// SpongeMajor extracts the major Sponge API version this promoted version
// targets, or 0 if no Sponge tag is present.
func (pv PromotedVersion) SpongeMajor() int {
	for _, tag := range pv.Tags {
		if !strings.Contains(tag.Name, "Sponge") {
			continue
		}
		display := tag.DisplayData
		if display == "" {
			display = tag.Data
		}
		major, _, _ := strings.Cut(display, ".")
		if n, err := strconv.Atoi(major); err == nil {
			return n
		}
	}
	return 0
}

// ProjectStats are the all-time counters the catalog tracks per project.
type ProjectStats struct {
	Views           int64 `json:"views"`
	Downloads       int64 `json:"downloads"`
	RecentViews     int64 `json:"recent_views"`
	RecentDownloads int64 `json:"recent_downloads"`
	Stars           int64 `json:"stars"`
	Watchers        int64 `json:"watchers"`
}

// ProjectSettings are the optional project links and license.
type ProjectSettings struct {
	Homepage  string         `json:"homepage,omitempty"`
	Issues    string         `json:"issues,omitempty"`
	Sources   string         `json:"sources,omitempty"`
	License   ProjectLicense `json:"license"`
	ForumSync bool           `json:"forum_sync"`
}

// ProjectLicense names the license a project is published under.
type ProjectLicense struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Project is the catalog's summary record for one plugin.
type Project struct {
	CreatedAt        time.Time         `json:"created_at"`
	PluginID         string            `json:"plugin_id"`
	Name             string            `json:"name"`
	Namespace        ProjectNamespace  `json:"namespace"`
	PromotedVersions []PromotedVersion `json:"promoted_versions"`
	Stats            ProjectStats      `json:"stats"`
	Category         string            `json:"category"`
	Description      string            `json:"description"`
	LastUpdated      time.Time         `json:"last_updated"`
	Visibility       string            `json:"visibility"`
	IconURL          string            `json:"icon_url,omitempty"`
	Settings         ProjectSettings   `json:"settings"`
}

// PromotedFor returns the promoted version matching the given Sponge API
// major version. With spongeMajor 0, or when no tag matches, it falls back to
// the first promoted version. Returns false when nothing is promoted at all.
func (p *Project) PromotedFor(spongeMajor int) (PromotedVersion, bool) {
	if len(p.PromotedVersions) == 0 {
		return PromotedVersion{}, false
	}
	if spongeMajor > 0 {
		for _, pv := range p.PromotedVersions {
			if pv.SpongeMajor() == spongeMajor {
				return pv, true
			}
		}
	}
	return p.PromotedVersions[0], true
}

// ProjectList is one page of project search results, ordered by the
// catalog's applied sort.
type ProjectList struct {
	Pagination Pagination `json:"pagination"`
	Result     []Project  `json:"result"`
}

// VersionDependency is a dependency declared by a version on another plugin.
type VersionDependency struct {
	PluginID string `json:"plugin_id"`
	Version  string `json:"version,omitempty"`
}

// FileInfo describes the downloadable artifact behind a version.
type FileInfo struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	MD5Hash   string `json:"md5_hash,omitempty"`
}

// VersionTag carries platform metadata for a version record.
type VersionTag struct {
	Name string `json:"name"`
	Data string `json:"data,omitempty"`
}

// VersionStats are the per-version counters.
type VersionStats struct {
	Downloads int64 `json:"downloads"`
}

// Version is one release record of a plugin. Ordering between versions is
// the catalog's own (listing is newest first); names are not assumed to be
// comparable by string order.
type Version struct {
	CreatedAt    time.Time           `json:"created_at"`
	Name         string              `json:"name"`
	Dependencies []VersionDependency `json:"dependencies"`
	Visibility   string              `json:"visibility"`
	Description  string              `json:"description,omitempty"`
	Stats        VersionStats        `json:"stats"`
	FileInfo     FileInfo            `json:"file_info"`
	Author       string              `json:"author,omitempty"`
	ReviewState  string              `json:"review_state"`
	Tags         []VersionTag        `json:"tags"`
}

// VersionList is one page of a plugin's version listing, newest first.
type VersionList struct {
	Pagination Pagination `json:"pagination"`
	Result     []Version  `json:"result"`
}

// ProjectDayStats is one day of member-only project statistics.
type ProjectDayStats struct {
	Downloads int64 `json:"downloads"`
	Views     int64 `json:"views"`
}

// Session is the auth session the catalog hands out from /authenticate.
type Session struct {
	SessionID string    `json:"session"`
	Expires   time.Time `json:"expires"`
	Type      string    `json:"type,omitempty"`
}
