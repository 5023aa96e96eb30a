package jar

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeJar builds a jar at path with the given entries.
func writeJar(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

const nucleusDescriptor = `[{
	"modid": "nucleus",
	"name": "Nucleus",
	"version": "2.1.4",
	"dependencies": ["spongeapi@7.3"],
	"requiredMods": ["spongeapi@7.3"]
}]`

func TestReadFileExtractsDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nucleus.jar")
	writeJar(t, path, map[string]string{
		"mcmod.info":               nucleusDescriptor,
		"assets/nucleus/lang.json": `{}`,
		"META-INF/MANIFEST.MF":     "Manifest-Version: 1.0\n",
	})

	desc, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nucleus", desc.ModID)
	assert.Equal(t, "Nucleus", desc.Name)
	assert.Equal(t, "2.1.4", desc.Version)
	assert.Equal(t, 7, desc.SpongeMajor())
}

func TestReadFileDescriptorShapes(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
	}{
		{"bare object", `{"modid":"huskycrates","version":"2.0.0PRE9H2"}`},
		{"top-level array", `[{"modid":"huskycrates","version":"2.0.0PRE9H2"}]`},
		{"info wrapper object", `{"info":{"modid":"huskycrates","version":"2.0.0PRE9H2"}}`},
		{"info wrapper array", `{"info":[{"modid":"huskycrates","version":"2.0.0PRE9H2"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "plugin.jar")
			writeJar(t, path, map[string]string{"mcmod.info": tt.descriptor})

			desc, err := ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "huskycrates", desc.ModID)
			assert.Equal(t, "2.0.0PRE9H2", desc.Version)
		})
	}
}

func TestReadFileNoDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jar")
	writeJar(t, path, map[string]string{"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n"})

	_, err := ReadFile(path)
	assert.ErrorIs(t, err, ErrMetadataNotFound)
}

func TestReadFileMalformedDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
	}{
		{"not json", "modid=nucleus"},
		{"empty", "   "},
		{"missing modid", `{"version":"1.0"}`},
		{"missing version", `{"modid":"nucleus"}`},
		{"empty array", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "plugin.jar")
			writeJar(t, path, map[string]string{"mcmod.info": tt.descriptor})

			_, err := ReadFile(path)
			assert.ErrorIs(t, err, ErrMetadataMalformed)
		})
	}
}

func TestReadFileCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jar")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0644))

	_, err := ReadFile(path)
	assert.ErrorIs(t, err, ErrArchiveCorrupt)
}

func TestSpongeMajor(t *testing.T) {
	tests := []struct {
		name string
		desc Descriptor
		want int
	}{
		{
			"from dependencies",
			Descriptor{Dependencies: []string{"spongeapi@7.3"}},
			7,
		},
		{
			"from required mods",
			Descriptor{RequiredMods: []string{"spongeapi@5.1.0-SNAPSHOT"}},
			5,
		},
		{
			"dependencies win over required mods",
			Descriptor{
				Dependencies: []string{"spongeapi@8.0.0"},
				RequiredMods: []string{"spongeapi@7.1.0"},
			},
			8,
		},
		{
			"other dependencies ignored",
			Descriptor{Dependencies: []string{"placeholderapi", "huskyui@0.6.0PRE3"}},
			0,
		},
		{
			"no version separator",
			Descriptor{Dependencies: []string{"spongeapi"}},
			0,
		},
		{"none declared", Descriptor{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.desc.SpongeMajor())
		})
	}
}
