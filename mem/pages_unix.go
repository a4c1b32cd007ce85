//go:build unix

package mem

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Pages maps anonymous private memory straight from the OS.
type Pages struct {
	pageSize int
}

// NewPages creates an mmap backed allocator, a zero page size means the OS page size.
func NewPages(pageSize int) *Pages {
	if pageSize == 0 {
		pageSize = unix.Getpagesize()
	}
	return &Pages{pageSize: checkPageSize(pageSize)}
}

// Default is the allocator a linker uses when none is configured.
func Default(pageSize int) Allocator {
	return NewPages(pageSize)
}

func (p *Pages) Method() Method { return MethodMmap }
func (p *Pages) PageSize() int  { return p.pageSize }

func (p *Pages) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	b, err := unix.Mmap(-1, 0, RoundUp(size, p.pageSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}
	return b, nil
}

func (p *Pages) Protect(b []byte, prot Prot) error {
	if err := unix.Mprotect(b, unixProt(prot)); err != nil {
		return os.NewSyscallError("mprotect", err)
	}
	return nil
}

func (p *Pages) Free(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return os.NewSyscallError("munmap", err)
	}
	return nil
}

func unixProt(p Prot) int {
	switch p {
	case ProtRX:
		return unix.PROT_READ | unix.PROT_EXEC
	case ProtRW:
		return unix.PROT_READ | unix.PROT_WRITE
	default:
		return unix.PROT_READ
	}
}

// MapFile maps a whole file copy-on-write. The returned release func unmaps it.
func MapFile(path string) (data []byte, release func() error, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if st.Size() == 0 {
		return nil, nil, errors.Errorf("%s: empty file", path)
	}
	data, err = unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, os.NewSyscallError("mmap", err)
	}
	return data, func() error {
		if err := unix.Munmap(data); err != nil {
			return os.NewSyscallError("munmap", err)
		}
		return nil
	}, nil
}
