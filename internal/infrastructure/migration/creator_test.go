package migration

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add bin capacity", "add_bin_capacity"},
		{"Add-Bin-Capacity", "add_bin_capacity"},
		{"ADD_BIN_CAPACITY", "add_bin_capacity"},
		{"add__bin__capacity", "add_bin_capacity"},
		{"Batches 2", "batches_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "add bin capacity", "Capacity per bin")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_bin_capacity.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_add_bin_capacity.down.sql"), first.DownPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add bin capacity")
	assert.Contains(t, string(up), "Capacity per bin")
	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")

	second, err := CreateMigration(dir, "index movements", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, "000002_index_movements", second.BaseName())

	_, err = CreateMigration(dir, "!!!", "")
	assert.Error(t, err)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{
		"000010_add_bins.up.sql",
		"000010_add_bins.down.sql",
		"000002_add_index.up.sql",
		"000002_add_index.down.sql",
		"000001_init.up.sql",
		"README.md",
		"junk.up.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000003_dir.up.sql"), 0o755))

	files, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []uint{1, 2, 10}, []uint{files[0].Version, files[1].Version, files[2].Version})
	assert.Equal(t, "add_bins", files[2].Name)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	files, err := ListMigrations("/nonexistent/path/to/migrations")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRepositoryMigrationsArePaired(t *testing.T) {
	_, here, _, ok := runtime.Caller(0)
	require.True(t, ok)
	dir := filepath.Join(filepath.Dir(here), "..", "..", "..", "migrations")

	files, err := ListMigrations(dir)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for i, f := range files {
		assert.Equal(t, uint(i+1), f.Version, "versions are contiguous")
		_, err := os.Stat(f.DownPath)
		assert.NoError(t, err, "%s has a down migration", f.BaseName())
	}
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "file://migrations", sourceURL("migrations"))
	assert.Equal(t, "file:///abs/migrations", sourceURL("/abs/migrations"))
	assert.Equal(t, "iofs://x", sourceURL("iofs://x"))
}
