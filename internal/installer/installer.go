package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/DrZoddiak/ore-monitor/internal/ore"
)

var (
	// ErrDownloadFailed means the artifact bytes could not be fetched or
	// streamed to disk.
	ErrDownloadFailed = errors.New("download failed")
	// ErrTargetUnwritable means the target directory cannot be created or
	// written to.
	ErrTargetUnwritable = errors.New("install target unwritable")
)

// Catalog is the slice of the catalog client the installer needs.
type Catalog interface {
	GetProject(ctx context.Context, pluginID string) (*ore.Project, error)
	GetVersion(ctx context.Context, pluginID, name string) (*ore.Version, error)
	Download(ctx context.Context, ns ore.ProjectNamespace, versionName string) (io.ReadCloser, string, int64, error)
}

// Installer fetches a resolved version's artifact and places it in a target
// directory. Writes go through a temp file and a single atomic rename; a
// partial artifact is never visible under its final name.
type Installer struct {
	catalog Catalog
	log     *log.Logger
}

// New creates an installer.
func New(catalog Catalog, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.Default()
	}
	return &Installer{catalog: catalog, log: logger}
}

// Install resolves (pluginID, versionName), downloads the artifact and
// writes it into targetDir. Returns the final file path. Installing the same
// pair twice overwrites with identical bytes.
func (i *Installer) Install(ctx context.Context, pluginID, versionName, targetDir string) (string, error) {
	project, err := i.catalog.GetProject(ctx, pluginID)
	if err != nil {
		return "", err
	}
	version, err := i.catalog.GetVersion(ctx, pluginID, versionName)
	if err != nil {
		return "", err
	}

	if targetDir == "" {
		targetDir = "."
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTargetUnwritable, err)
	}

	body, suggested, size, err := i.catalog.Download(ctx, project.Namespace, versionName)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	finalName := installFilename(suggested, version, pluginID, versionName)
	finalPath := filepath.Join(targetDir, finalName)

	tmp, err := os.CreateTemp(targetDir, ".oremon-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTargetUnwritable, err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	written, err := io.Copy(tmp, &contextReader{ctx: ctx, r: body})
	if err != nil {
		cleanup()
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if size > 0 && written != size {
		cleanup()
		return "", fmt.Errorf("%w: got %d of %d bytes", ErrDownloadFailed, written, size)
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: %v", ErrTargetUnwritable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %v", ErrTargetUnwritable, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %v", ErrTargetUnwritable, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %v", ErrTargetUnwritable, err)
	}

	i.log.Info("Installed plugin artifact", "plugin", pluginID, "version", versionName, "path", finalPath, "bytes", written)
	return finalPath, nil
}

// installFilename picks the final artifact name: the server's suggestion
// first, then the catalog's file info, then a name derived from the
// (plugin, version) pair. Path components are stripped from server-supplied
// names.
func installFilename(suggested string, version *ore.Version, pluginID, versionName string) string {
	if suggested != "" {
		if name := filepath.Base(suggested); name != "." && name != string(filepath.Separator) {
			return name
		}
	}
	if version.FileInfo.Name != "" {
		return filepath.Base(version.FileInfo.Name)
	}
	return fmt.Sprintf("%s-%s.jar", pluginID, versionName)
}

// contextReader cancels an in-flight copy as soon as its context does.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
