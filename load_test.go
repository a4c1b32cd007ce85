package linker_test

import (
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"

	"github.com/ZenLiuCN/linker"
	"github.com/ZenLiuCN/linker/internal/linkertest"
	"github.com/ZenLiuCN/linker/mem"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	f := newFixture(t)
	o := f.load(t, "a.o", &linkertest.Object{
		Sections: []linker.SectionSpec{linkertest.Code(".text", 32), linkertest.Data(".data", 8)},
		Symbols:  []linker.SymbolSpec{linkertest.Def("a.fn", 0, 16, normal), linkertest.Def("a.var", 1, 0, normal)},
	})
	require.Equal(t, linker.StatusReady, o.Status())
	require.Equal(t, linker.TypeStatic, o.Type())
	require.Equal(t, linker.StatusReady, f.Status("a.o", ""))
	require.Equal(t, linker.StatusNotLoaded, f.Status("b.o", ""))
	require.Equal(t, []*linker.Object{o}, f.LoadedObjects())
	require.NotNil(t, o.Info())
	require.Equal(t, o.Section(0).Start+16, lookup(t, f.Linker, "a.fn"))
	require.Equal(t, o.Section(1).Start, lookup(t, f.Linker, "a.var"))
	require.Len(t, o.Symbols(), 2)
	require.Empty(t, o.ProddableBlocks())
	got, ok := f.Object(o.ID())
	require.True(t, ok)
	require.Same(t, o, got)
}

func TestLoadIdempotent(t *testing.T) {
	f := newFixture(t)
	o := f.load(t, "a.o", text(normal, "a"))
	again, err := f.Load(linkertest.Image("a.o"))
	require.NoError(t, err)
	require.Same(t, o, again)
	require.Equal(t, 1, f.format.Parsed("a.o"))
	require.Len(t, f.Objects(), 1)
}

func TestLoadFailure(t *testing.T) {
	boom := errors.New("boom")
	for _, c := range []struct {
		name  string
		obj   *linkertest.Object
		stage linker.Stage
		err   error
	}{
		{"parse", &linkertest.Object{ParseErr: boom}, linker.StageSections, boom},
		{"alignment", &linkertest.Object{Sections: []linker.SectionSpec{{Name: ".text", Kind: linker.KindCodeOrRodata, Size: 8, Align: 3}}}, linker.StageSegments, nil},
		{"size", &linkertest.Object{Sections: []linker.SectionSpec{{Name: ".text", Kind: linker.KindCodeOrRodata, Data: make([]byte, 16), Size: 8}}}, linker.StageSegments, nil},
		{"symbol section", &linkertest.Object{
			Sections: []linker.SectionSpec{linkertest.Code(".text", 16)},
			Symbols:  []linker.SymbolSpec{linkertest.Def("own", 0, 0, normal), linkertest.Def("shared", 0, 8, normal), linkertest.Def("bad", 5, 0, normal)},
		}, linker.StageSymbols, nil},
		{"missing symbol", &linkertest.Object{
			Sections: []linker.SectionSpec{linkertest.Data(".data", 16)},
			Symbols:  []linker.SymbolSpec{linkertest.Def("own", 0, 0, normal), linkertest.Def("shared", 0, 8, normal)},
			Relocs:   []linkertest.Reloc{{Kind: linkertest.Abs64, Symbol: "nowhere"}},
		}, linker.StageRelocate, linker.ErrMissingSymbol},
		{"relocate", &linkertest.Object{
			Sections: []linker.SectionSpec{linkertest.Data(".data", 16)},
			Symbols:  []linker.SymbolSpec{linkertest.Def("own", 0, 0, normal), linkertest.Def("shared", 0, 8, normal)},
			RelocErr: boom,
		}, linker.StageRelocate, boom},
	} {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.Define("shared", 0x1000, weak))
			_, err := f.Load(f.format.Add("a.o", c.obj))
			require.ErrorIs(t, err, linker.ErrLoadFailed)
			if c.err != nil {
				require.ErrorIs(t, err, c.err)
			}
			var lerr *linker.LoadError
			require.ErrorAs(t, err, &lerr)
			require.Equal(t, c.stage, lerr.Stage)
			require.Equal(t, "a.o", lerr.Object)

			require.Empty(t, f.Objects())
			require.Zero(t, f.heap.Live())
			require.Equal(t, linker.StatusNotLoaded, f.Status("a.o", ""))
			_, err = f.Lookup("own", nil)
			require.ErrorIs(t, err, linker.ErrMissingSymbol)
			require.Equal(t, uintptr(0x1000), lookup(t, f.Linker, "shared"))
			require.Equal(t, []string{"load failed"}, f.errors)
			require.Equal(t, 1.0, testutil.ToFloat64(f.Metrics().LoadFailures.WithLabelValues(c.stage.String())))
		})
	}
}

func TestLoadAfterFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.Load(f.format.Add("a.o", &linkertest.Object{
		Sections: []linker.SectionSpec{linkertest.Data(".data", 8)},
		Symbols:  []linker.SymbolSpec{linkertest.Def("a", 0, 0, normal)},
		Relocs:   []linkertest.Reloc{{Kind: linkertest.Abs64, Symbol: "b"}},
	}))
	require.ErrorIs(t, err, linker.ErrMissingSymbol)
	f.load(t, "b.o", text(normal, "b"))
	a, err := f.Load(linkertest.Image("a.o"))
	require.NoError(t, err)
	require.Equal(t, 2, f.format.Parsed("a.o"))
	require.Equal(t, linker.StatusReady, a.Status())
}

func TestUnknownFormat(t *testing.T) {
	f := newFixture(t)
	_, err := f.Load(linker.NewImage("x.bin", "", []byte("garbage")))
	require.ErrorIs(t, err, linker.ErrLoadFailed)
	require.ErrorIs(t, err, linker.ErrUnknownFormat)
	var lerr *linker.LoadError
	require.ErrorAs(t, err, &lerr)
	require.Equal(t, linker.StageValidate, lerr.Stage)

	_, err = f.Load(linker.NewImage("x.o", "", []byte("\x00go119ld")))
	require.ErrorIs(t, err, linker.ErrUnknownFormat)
	require.Contains(t, err.Error(), "gc object file")
	require.Empty(t, f.Objects())
}

func TestNativeFormatWithoutHandler(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ELF is not the native format")
	}
	var fatals []string
	l, err := linker.New(linker.DefaultConfig(), linker.WithMessages(linker.Messages{
		Fatal: func(msg string) { fatals = append(fatals, msg) },
	}))
	require.NoError(t, err)
	defer l.Close()
	fe := fatal(t, func() { _, _ = l.Load(linker.NewImage("a.o", "", []byte("\x7fELF\x02\x01\x01"))) })
	require.Contains(t, fe.Msg, "no handler for ELF")
	require.Len(t, fatals, 1)
}

func TestLoadFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "a.o")
	require.NoError(t, os.WriteFile(path, []byte(linkertest.Magic), 0o644))
	f.format.Add(path, text(normal, "a"))
	o, err := f.LoadFile(path)
	require.NoError(t, err)
	again, err := f.LoadFile(path)
	require.NoError(t, err)
	require.Same(t, o, again)
	require.Equal(t, 1, f.format.Parsed(path))

	_, err = f.LoadFile(filepath.Join(t.TempDir(), "missing.o"))
	require.ErrorIs(t, err, linker.ErrLoadFailed)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestClosed(t *testing.T) {
	f := newFixture(t)
	o := f.load(t, "a.o", text(normal, "a"))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	require.Equal(t, linker.StatusFreed, o.Status())
	require.Zero(t, f.heap.Live())
	require.Empty(t, f.Symbols())
	_, err := f.Load(linkertest.Image("a.o"))
	require.ErrorIs(t, err, linker.ErrClosed)
	require.ErrorIs(t, err, linker.ErrLoadFailed)
}

// failingPages is a heap that fails on demand the way mmap and mprotect do.
type failingPages struct {
	*mem.Heap
	alloc, protect bool
}

func (p *failingPages) Alloc(size int) ([]byte, error) {
	if p.alloc {
		return nil, os.NewSyscallError("mmap", syscall.ENOMEM)
	}
	return p.Heap.Alloc(size)
}

func (p *failingPages) Protect(b []byte, prot mem.Prot) error {
	if p.protect {
		return os.NewSyscallError("mprotect", syscall.EACCES)
	}
	return p.Heap.Protect(b, prot)
}

func TestSystemFailure(t *testing.T) {
	pages := &failingPages{Heap: mem.NewHeap(4096)}
	f := newFixture(t, linker.WithAllocator(pages))
	first := f.load(t, "a.o", text(normal, "a"))
	live := pages.Live()

	for _, c := range []struct {
		name    string
		syscall string
		stage   linker.Stage
		set     func(bool)
	}{
		{"mmap", "mmap", linker.StageSegments, func(v bool) { pages.alloc = v }},
		{"mprotect", "mprotect", linker.StageProtect, func(v bool) { pages.protect = v }},
	} {
		t.Run(c.name, func(t *testing.T) {
			c.set(true)
			defer c.set(false)
			reported := len(f.system)
			_, err := f.Load(f.format.Add(c.name+".o", text(normal, c.name)))
			require.ErrorIs(t, err, linker.ErrLoadFailed)
			var lerr *linker.LoadError
			require.ErrorAs(t, err, &lerr)
			require.Equal(t, c.stage, lerr.Stage)
			var serr *os.SyscallError
			require.ErrorAs(t, err, &serr)
			require.Equal(t, c.syscall, serr.Syscall)

			require.Len(t, f.system, reported+1)
			require.ErrorIs(t, f.system[reported], linker.ErrLoadFailed)
			require.Empty(t, f.fatals)
			require.Equal(t, live, pages.Live())
			_, err = f.Lookup(c.name, nil)
			require.ErrorIs(t, err, linker.ErrMissingSymbol)
		})
	}

	require.Equal(t, []*linker.Object{first}, f.LoadedObjects())
	require.Equal(t, linker.StatusReady, first.Status())
	require.Equal(t, first.Section(0).Start, lookup(t, f.Linker, "a"))
	f.load(t, "b.o", text(normal, "b"))
}
