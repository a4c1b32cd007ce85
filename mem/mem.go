// Package mem provides page granular memory for loaded object code.
//
// An [Allocator] hands out page aligned, page rounded, read-write blocks. A block stays writable
// until [Allocator.Protect] moves it to its final protection, which the linker does exactly once
// after every relocation into the block has been applied.
package mem

import (
	"fmt"
	"unsafe"
)

// Prot is the protection a block of pages ends up with.
type Prot int

const (
	ProtRO Prot = iota // read only
	ProtRX             // read and execute
	ProtRW             // read and write
)

func (p Prot) String() string {
	switch p {
	case ProtRO:
		return "r--"
	case ProtRX:
		return "r-x"
	case ProtRW:
		return "rw-"
	default:
		return fmt.Sprintf("Prot(%d)", int(p))
	}
}

// Method tells how an allocator obtains its pages.
type Method int

const (
	MethodMmap Method = iota // direct OS mapping
	MethodHeap               // Go heap, protection is only recorded
)

func (m Method) String() string {
	if m == MethodMmap {
		return "mmap"
	}
	return "heap"
}

// Allocator is the page source used for segments.
type Allocator interface {
	Method() Method
	PageSize() int
	// Alloc returns a zeroed read-write block of at least size bytes, rounded to whole pages.
	Alloc(size int) ([]byte, error)
	// Protect applies p to every page of a block returned by Alloc.
	Protect(b []byte, p Prot) error
	// Free releases a block returned by Alloc.
	Free(b []byte) error
}

// RoundUp rounds n up to a multiple of align, align must be a power of two.
func RoundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// RoundDown rounds n down to a multiple of align, align must be a power of two.
func RoundDown(n, align int) int {
	return n &^ (align - 1)
}

// Addr is the address of the first byte of b, zero for an empty slice.
func Addr(b []byte) uintptr {
	if cap(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

func checkPageSize(n int) int {
	if n <= 0 || n&(n-1) != 0 {
		panic(fmt.Sprintf("page size %d is not a positive power of two", n))
	}
	return n
}
