package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discovery-cache")
	want := Record{IP: "192.168.1.42", Name: "N3DSSMB", Timestamp: time.Unix(1700000000, 0).UTC()}

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, want.IP, got.IP)
	require.Equal(t, want.Name, got.Name)
	require.True(t, want.Timestamp.Equal(got.Timestamp))
}

func TestLoadMissingFileReturnsNilNil(t *testing.T) {
	rec, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestLoadCorruptFileReturnsNilNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt-cache")
	require.NoError(t, os.WriteFile(path, []byte("not\tenough"), 0o644))

	rec, err := Load(path)
	require.NoError(t, err)
	require.Nil(t, rec)
}
