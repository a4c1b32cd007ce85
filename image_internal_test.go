package linker

import (
	"os"
	"syscall"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestDiscard(t *testing.T) {
	var system, user []error
	l, err := New(DefaultConfig(), WithLogger(log.NewNopLogger()), WithMessages(Messages{
		Error:    func(msg string, _ ...any) { user = append(user, nil) },
		SysError: func(_ string, err error, _ ...any) { system = append(system, err) },
	}))
	require.NoError(t, err)
	defer l.Close()

	img := NewImage("a.o", "", []byte("data"))
	img.Mapped = true
	img.release = func() error { return os.NewSyscallError("munmap", syscall.EINVAL) }
	l.Discard(img)
	require.Len(t, system, 1)
	require.ErrorIs(t, system[0], syscall.EINVAL)
	require.Empty(t, user)
	require.False(t, img.Mapped)
	require.Nil(t, img.Data)

	// a heap image has nothing to unmap
	l.Discard(NewImage("b.o", "", []byte("data")))
	require.Len(t, system, 1)
}
