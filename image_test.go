package linker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZenLiuCN/linker"
	"github.com/ZenLiuCN/linker/mem"
	"github.com/stretchr/testify/require"
)

func TestNewImage(t *testing.T) {
	img := linker.NewImage("a.o", "m.o", []byte("content"))
	require.Zero(t, mem.Addr(img.Data)%16)
	require.Equal(t, "content", string(img.Data))
	require.Equal(t, 7, img.Size())
	require.False(t, img.Mapped)

	require.NoError(t, img.Grow(9))
	require.Equal(t, 16, img.Size())
	require.Zero(t, mem.Addr(img.Data)%16)
	require.Equal(t, "content", string(img.Data[:7]))
	require.Equal(t, make([]byte, 9), img.Data[7:])

	require.NoError(t, img.Free())
	require.Zero(t, img.Size())
}

func TestReadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.o")
	require.NoError(t, os.WriteFile(path, []byte("object file"), 0o644))
	img, err := linker.ReadImage(path)
	require.NoError(t, err)
	require.Equal(t, path, img.Path)
	require.Empty(t, img.Member)
	require.Equal(t, "object file", string(img.Data))

	require.NoError(t, img.Grow(5))
	require.False(t, img.Mapped)
	require.Equal(t, "object file", string(img.Data[:11]))
	require.NoError(t, img.Free())
}

func TestDetectFormat(t *testing.T) {
	require.Equal(t, linker.FormatELF, linker.DetectFormat([]byte("\x7fELF\x02")))
	require.Equal(t, linker.FormatPE, linker.DetectFormat([]byte{0x64, 0x86, 0, 0}))
	require.Equal(t, linker.FormatMachO, linker.DetectFormat([]byte{0xcf, 0xfa, 0xed, 0xfe}))
	require.Equal(t, linker.FormatUnknown, linker.DetectFormat([]byte("ab")))
	require.Equal(t, "Mach-O", linker.FormatMachO.String())
	require.True(t, linker.IsArchive([]byte("!<arch>\n")))
}
