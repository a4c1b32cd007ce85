package linker_test

import (
	"encoding/binary"
	"testing"

	"github.com/ZenLiuCN/linker"
	"github.com/ZenLiuCN/linker/internal/linkertest"
	"github.com/stretchr/testify/require"
)

func table(kind linker.SectionKind, name string, entries ...uint64) linker.SectionSpec {
	b := make([]byte, 8*len(entries))
	for i, e := range entries {
		binary.LittleEndian.PutUint64(b[8*i:], e)
	}
	return linker.SectionSpec{Name: name, Kind: kind, Data: b, Size: len(b), Align: 8}
}

func TestInitializers(t *testing.T) {
	var calls []uintptr
	defer linker.SwapCallFn(func(fn uintptr) { calls = append(calls, fn) })()

	cfg := linker.DefaultConfig()
	cfg.Arch = "amd64"
	cfg.RunInitializers = true
	f := newFixtureConfig(t, cfg)
	o := f.load(t, "a.o", &linkertest.Object{
		Sections: []linker.SectionSpec{
			linkertest.Code(".text", 16),
			table(linker.KindInitArray, ".init_array", 0x10, 0, 0x20, ^uint64(0)),
			table(linker.KindFiniArray, ".fini_array", 0x30, 0x40),
		},
	})
	require.Equal(t, []uintptr{0x10, 0x20}, calls)

	calls = nil
	require.NoError(t, f.Unload(o))
	require.Equal(t, []uintptr{0x40, 0x30}, calls)
}

func TestInitializersDisabled(t *testing.T) {
	var calls []uintptr
	defer linker.SwapCallFn(func(fn uintptr) { calls = append(calls, fn) })()

	f := newFixture(t)
	o := f.load(t, "a.o", &linkertest.Object{
		Sections: []linker.SectionSpec{table(linker.KindInitArray, ".init_array", 0x10)},
	})
	require.NoError(t, f.Unload(o))
	require.Empty(t, calls)
}

func TestInitializersUnsupported(t *testing.T) {
	defer linker.SwapCallFn(nil)()

	cfg := linker.DefaultConfig()
	cfg.Arch = "amd64"
	cfg.RunInitializers = true
	f := newFixtureConfig(t, cfg)
	_, err := f.Load(f.format.Add("a.o", &linkertest.Object{
		Sections: []linker.SectionSpec{table(linker.KindInitArray, ".init_array", 0x10)},
	}))
	require.ErrorIs(t, err, linker.ErrUnsupported)
	var lerr *linker.LoadError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, linker.StageInit, lerr.Stage)
	require.Empty(t, f.Objects())
}
