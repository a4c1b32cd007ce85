package linker_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveAddr(t *testing.T) {
	f := newFixture(t)
	o := f.load(t, "a.o", text(normal, "s0", "s1"))
	start := o.Section(0).Start

	r, ok := f.ResolveAddr(start + 4)
	require.True(t, ok)
	require.Equal(t, "s0", r.Name)
	require.Equal(t, uintptr(4), r.Offset)
	require.Same(t, o, r.Object)
	require.Equal(t, "s0+0x4", r.String())

	r, ok = f.ResolveAddr(start + 8)
	require.True(t, ok)
	require.Equal(t, "s1", r.String())
	cached, ok := f.ResolveAddr(start + 8)
	require.True(t, ok)
	require.Equal(t, r, cached)

	_, ok = f.ResolveAddr(0x10)
	require.False(t, ok)

	require.NoError(t, f.Unload(o))
	_, ok = f.ResolveAddr(start + 4)
	require.False(t, ok)
}
