package jar

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrArchiveCorrupt means the file could not be opened as a zip container.
	ErrArchiveCorrupt = errors.New("archive corrupt")
	// ErrMetadataNotFound means the archive has no descriptor entry.
	ErrMetadataNotFound = errors.New("plugin descriptor not found")
	// ErrMetadataMalformed means the descriptor exists but could not be
	// parsed into an id and a version.
	ErrMetadataMalformed = errors.New("plugin descriptor malformed")
)

// descriptorName is the descriptor entry plugin jars carry.
const descriptorName = "mcmod.info"

// descriptorMaxSize caps how much of a descriptor entry is read. Real
// descriptors are a few hundred bytes; anything larger is hostile or broken.
const descriptorMaxSize = 1 << 20

// Descriptor is the identity metadata embedded in a plugin jar.
type Descriptor struct {
	ModID        string   `json:"modid"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Dependencies []string `json:"dependencies"`
	RequiredMods []string `json:"requiredMods"`
}

// SpongeMajor returns the major version of the spongeapi dependency the
// plugin was built against, or 0 when none is declared. Checked first in
// dependencies, then in requiredMods, matching how plugins declare it.
func (d *Descriptor) SpongeMajor() int {
	if major, ok := findMajor("spongeapi", d.Dependencies); ok {
		return major
	}
	if major, ok := findMajor("spongeapi", d.RequiredMods); ok {
		return major
	}
	return 0
}

func findMajor(id string, list []string) (int, bool) {
	for _, entry := range list {
		if !strings.HasPrefix(entry, id) {
			continue
		}
		_, ver, ok := strings.Cut(entry, "@")
		if !ok {
			continue
		}
		major, _, _ := strings.Cut(ver, ".")
		if n, err := strconv.Atoi(major); err == nil {
			return n, true
		}
	}
	return 0, false
}

// ReadFile opens the jar at path and extracts its descriptor. Only the
// central directory and the single descriptor entry are read; the archive
// contents are never loaded.
func ReadFile(path string) (*Descriptor, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	defer func() { _ = r.Close() }()

	return readDescriptor(&r.Reader)
}

// Read extracts a descriptor from an already-open archive stream. size is
// the total byte length of the archive, as zip needs the end of the stream
// to locate the central directory.
func Read(r io.ReaderAt, size int64) (*Descriptor, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	return readDescriptor(zr)
}

func readDescriptor(zr *zip.Reader) (*Descriptor, error) {
	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == descriptorName {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, ErrMetadataNotFound
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, descriptorMaxSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}

	desc, err := parseDescriptor(data)
	if err != nil {
		return nil, err
	}
	return desc, nil
}

// parseDescriptor accepts the descriptor shapes seen in the wild: a bare
// object, an {"info": [...]} wrapper, and a top-level array.
func parseDescriptor(data []byte) (*Descriptor, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: descriptor entry is empty", ErrMetadataMalformed)
	}

	var desc Descriptor
	switch trimmed[0] {
	case '[':
		var list []Descriptor
		if err := json.Unmarshal(data, &list); err != nil || len(list) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrMetadataMalformed, err)
		}
		desc = list[0]
	case '{':
		var wrapper struct {
			Info json.RawMessage `json:"info"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMetadataMalformed, err)
		}
		if len(wrapper.Info) > 0 {
			return parseDescriptor(wrapper.Info)
		}
		if err := json.Unmarshal(data, &desc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMetadataMalformed, err)
		}
	default:
		return nil, fmt.Errorf("%w: descriptor is not JSON", ErrMetadataMalformed)
	}

	if desc.ModID == "" || desc.Version == "" {
		return nil, fmt.Errorf("%w: descriptor missing modid or version", ErrMetadataMalformed)
	}
	return &desc, nil
}
