package linker_test

import (
	"reflect"
	"testing"

	"github.com/ZenLiuCN/linker"
	"github.com/stretchr/testify/require"
)

func answer() int { return 42 }

func TestFetch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.Define("host.answer", reflect.ValueOf(answer).Pointer(), normal))
	s, ok := f.Fetch("host.answer")
	require.True(t, ok)
	require.Equal(t, 42, linker.As[func() int](s)())

	_, ok = f.Fetch("host.missing")
	require.False(t, ok)
	require.Panics(t, func() { f.MustFetch("host.missing") })
}

func TestUse(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.Define("host.answer", reflect.ValueOf(answer).Pointer(), normal))
	called := 0
	linker.Use[func() int](f.Linker, "host.answer")(func(fn func() int, err error) {
		called++
		require.NoError(t, err)
		require.Equal(t, 42, fn())
	})
	linker.Use[func() int](f.Linker, "host.missing")(func(fn func() int, err error) {
		called++
		require.ErrorIs(t, err, linker.ErrMissingSymbol)
		require.Nil(t, fn)
	})
	require.Equal(t, 2, called)
}
