package linker_test

import (
	"testing"
	"unsafe"

	"github.com/ZenLiuCN/fn"
	"github.com/ZenLiuCN/linker"
	"github.com/ZenLiuCN/linker/internal/linkertest"
	"github.com/ZenLiuCN/linker/mem"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	*linker.Linker
	format *linkertest.Format
	heap   *mem.Heap
	fatals []string
	errors []string
	system []error
}

func newFixture(t *testing.T, opts ...linker.Option) *fixture {
	cfg := linker.DefaultConfig()
	cfg.Arch = "amd64"
	return newFixtureConfig(t, cfg, opts...)
}

func newFixtureConfig(t *testing.T, cfg linker.Config, opts ...linker.Option) *fixture {
	f := &fixture{format: linkertest.NewFormat(), heap: mem.NewHeap(4096)}
	opts = append([]linker.Option{
		linker.WithLogger(log.NewNopLogger()),
		linker.WithAllocator(f.heap),
		linker.WithFormats(f.format),
		linker.WithMessages(linker.Messages{
			Fatal:    func(msg string) { f.fatals = append(f.fatals, msg) },
			Error:    func(msg string, _ ...any) { f.errors = append(f.errors, msg) },
			SysError: func(_ string, err error, _ ...any) { f.system = append(f.system, err) },
		}),
	}, opts...)
	f.Linker = fn.Panic1(linker.New(cfg, opts...))
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// load registers obj under name and loads it.
func (f *fixture) load(t *testing.T, name string, obj *linkertest.Object) *linker.Object {
	t.Helper()
	o, err := f.Load(f.format.Add(name, obj))
	require.NoError(t, err)
	return o
}

// fatal runs f and returns the fatal error it aborted with.
func fatal(t *testing.T, f func()) (fe *linker.FatalError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "no fatal error")
		var ok bool
		fe, ok = r.(*linker.FatalError)
		require.True(t, ok, "panic %v", r)
	}()
	f()
	return
}

// raw is the memory at addr, which must belong to a live segment.
func raw(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

func segmentMem(s linker.Segment) []byte {
	return raw(s.Start, s.Size)
}

func lookup(t *testing.T, l *linker.Linker, name string) uintptr {
	t.Helper()
	addr, err := l.Lookup(name, nil)
	require.NoError(t, err)
	return addr
}

var (
	normal = linker.StrengthNormal
	weak   = linker.StrengthWeak
	strong = linker.StrengthStrong
)

// text is an object with a code section defining syms at consecutive 8 byte offsets.
func text(strength linker.Strength, syms ...string) *linkertest.Object {
	obj := &linkertest.Object{Sections: []linker.SectionSpec{linkertest.Code(".text", 8*len(syms)+8)}}
	for i, s := range syms {
		obj.Symbols = append(obj.Symbols, linkertest.Def(s, 0, uint64(8*i), strength))
	}
	return obj
}
