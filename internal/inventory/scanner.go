package inventory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/DrZoddiak/ore-monitor/internal/jar"
)

var (
	// ErrPathNotFound means the scan root does not exist.
	ErrPathNotFound = errors.New("path not found")
	// ErrPathUnreadable means the scan root exists but cannot be read.
	ErrPathUnreadable = errors.New("path unreadable")
)

// Artifact is one plugin archive discovered on disk. Descriptor is nil when
// the archive's metadata could not be extracted; Err then says why. Per-file
// failures are data, never faults.
type Artifact struct {
	Path       string
	Descriptor *jar.Descriptor
	Err        error
}

// Parseable reports whether the artifact yielded both a plugin id and a
// version. Freshness comparison needs both.
func (a Artifact) Parseable() bool {
	return a.Err == nil && a.Descriptor != nil
}

// Scanner discovers plugin archives beneath a filesystem path.
type Scanner struct {
	log *log.Logger
}

// NewScanner creates a scanner.
func NewScanner(logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{log: logger}
}

// isArchive matches by extension; plugin artifacts are jars.
func isArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".jar")
}

// Scan walks path and returns one Artifact per archive file found. A path
// naming a single file yields zero or one artifact (zero when it is not an
// archive by extension). Directories are walked recursively in a stable
// order. Unreadable archives are returned with Err set; only a missing or
// unreadable root is fatal.
func (s *Scanner) Scan(path string) ([]Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPathUnreadable, path)
		}
		return nil, err
	}

	if !info.IsDir() {
		if !isArchive(path) {
			s.log.Debug("Skipping non-archive file", "path", path)
			return []Artifact{}, nil
		}
		return []Artifact{s.read(path)}, nil
	}

	var artifacts []Artifact
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			// A subtree we cannot read must not hide the rest of the scan.
			s.log.Warn("Skipping unreadable entry", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isArchive(d.Name()) {
			return nil
		}
		artifacts = append(artifacts, s.read(p))
		return nil
	})
	if walkErr != nil {
		if os.IsPermission(walkErr) {
			return nil, fmt.Errorf("%w: %s", ErrPathUnreadable, path)
		}
		return nil, walkErr
	}

	if artifacts == nil {
		artifacts = []Artifact{}
	}
	return artifacts, nil
}

// read builds the artifact for a single archive file.
func (s *Scanner) read(path string) Artifact {
	desc, err := jar.ReadFile(path)
	if err != nil {
		s.log.Debug("Failed to read archive metadata", "path", path, "error", err)
		return Artifact{Path: path, Err: err}
	}
	return Artifact{Path: path, Descriptor: desc}
}
