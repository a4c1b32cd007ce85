package linker_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDump(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.Define("host.fn", 0x1234, normal))
	a, _ := pair(t, f)
	f.load(t, "i.o", islandObject(1, "host.fn"))

	var b bytes.Buffer
	require.NoError(t, f.Dump(&b))
	out := b.String()
	t.Log(out)
	require.Contains(t, out, "a.o [static ready]")
	require.Contains(t, out, "segment 0")
	require.Contains(t, out, ".data")
	require.Contains(t, out, "island\thost.fn")
	require.Contains(t, out, "needs\t"+a.Name())
}
