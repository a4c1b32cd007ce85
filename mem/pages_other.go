//go:build !unix

package mem

import (
	"os"

	"github.com/pkg/errors"
)

const defaultPageSize = 4096

// Default is the allocator a linker uses when none is configured.
func Default(pageSize int) Allocator {
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	return NewHeap(pageSize)
}

// MapFile reads the file into the heap, there is no mapping on this platform.
func MapFile(path string) (data []byte, release func() error, err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if len(data) == 0 {
		return nil, nil, errors.Errorf("%s: empty file", path)
	}
	return data, nil, nil
}
