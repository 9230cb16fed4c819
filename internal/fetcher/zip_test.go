package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractBundle_Shapefile(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"export/bays.shp":          "shp",
		"export/bays.shx":          "shx",
		"export/bays.dbf":          "dbf",
		"export/README.txt":        "read me",
		"__MACOSX/export/._bays":   "meta",
		"export/metadata/info.pdf": "pdf",
	})

	destDir := t.TempDir()
	b, err := ExtractBundle(zipPath, destDir)
	require.NoError(t, err)

	assert.Len(t, b.Files, 3)
	assert.Equal(t, filepath.Join(destDir, "bays.shp"), b.Shapefile)
	assert.Empty(t, b.Tables)
	assert.Equal(t, b.Shapefile, b.Primary())

	data, err := os.ReadFile(filepath.Join(destDir, "bays.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "dbf", string(data))
	assert.NoFileExists(t, filepath.Join(destDir, "README.txt"))
}

func TestExtractBundle_Tables(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"sensors.csv": "bay_id,status\n",
	})
	destDir := t.TempDir()

	b, err := ExtractBundle(zipPath, destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "sensors.csv"), b.Primary())

	two := createTestZIP(t, map[string]string{"a.csv": "x\n", "b.xlsx": "y"})
	b, err = ExtractBundle(two, t.TempDir())
	require.NoError(t, err)
	assert.Len(t, b.Tables, 2)
	assert.Empty(t, b.Primary())
}

func TestExtractBundle_ParentPathRejected(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"../evil.csv": "nope",
	})

	destDir := t.TempDir()
	_, err := ExtractBundle(zipPath, destDir)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(destDir), "evil.csv"))
}

func TestExtractBundle_DuplicateNames(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"2024/bays.csv": "a",
		"2025/bays.csv": "b",
	})

	_, err := ExtractBundle(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both extract to bays.csv")
}

func TestExtractBundle_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractBundle(path, t.TempDir())
	assert.Error(t, err)
}
