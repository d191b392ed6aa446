package fsstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kubisat/flight.go/pkg/hal"
)

func TestStore(t *testing.T) {
	dir, err := os.MkdirTemp("", "fsstore")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s := New(filepath.Join(dir, "card"))
	require.Equal(t, hal.ErrNotMounted, s.Append("/a.csv", []byte("x")))
	_, err = s.List()
	require.Equal(t, hal.ErrNotMounted, err)

	require.NoError(t, s.Mount())
	require.NoError(t, s.Append("/b.csv", []byte("12")))
	require.NoError(t, s.Append("a.csv", []byte("1")))
	require.NoError(t, s.Append("/b.csv", []byte("34")))
	require.NoError(t, s.Append("../../escape.csv", []byte("z")))

	files, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []hal.FileInfo{
		{Name: "a.csv", Size: 1},
		{Name: "b.csv", Size: 4},
		{Name: "escape.csv", Size: 1},
	}, files)

	content, err := os.ReadFile(filepath.Join(dir, "card", "b.csv"))
	require.NoError(t, err)
	require.Equal(t, "1234", string(content))

	require.NoError(t, s.Unmount())
	require.Equal(t, hal.ErrNotMounted, s.Append("/b.csv", []byte("5")))
}
