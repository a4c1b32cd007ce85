//go:build unix

package mem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPages(t *testing.T) {
	p := NewPages(0)
	require.Equal(t, MethodMmap, p.Method())
	b, err := p.Alloc(p.PageSize() + 1)
	require.NoError(t, err)
	require.Len(t, b, 2*p.PageSize())
	b[0], b[len(b)-1] = 0xc3, 0xc3
	require.NoError(t, p.Protect(b, ProtRX))
	require.Equal(t, byte(0xc3), b[0])
	require.NoError(t, p.Protect(b, ProtRW))
	b[1] = 1
	require.NoError(t, p.Free(b))
}

func TestMapFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "image.o")
	require.NoError(t, os.WriteFile(name, []byte("\x7fELF-image"), 0o644))
	data, release, err := MapFile(name)
	require.NoError(t, err)
	require.Equal(t, "\x7fELF-image", string(data))
	data[0] = 0
	require.NoError(t, release())
	raw, err := os.ReadFile(name)
	require.NoError(t, err)
	require.Equal(t, byte(0x7f), raw[0])

	empty := filepath.Join(t.TempDir(), "empty.o")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, _, err = MapFile(empty)
	require.Error(t, err)
}
