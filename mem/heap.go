package mem

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownBlock occurs when protecting or freeing a block the allocator did not hand out.
	ErrUnknownBlock = errors.New("block not allocated by this allocator")
	// ErrBadSize occurs on a non positive allocation request.
	ErrBadSize = errors.New("allocation size must be positive")
)

// Heap allocates pages from the Go heap. Protection is recorded but not enforced, which makes it
// the allocator of choice on hosts without mmap and in tests.
type Heap struct {
	pageSize int
	sync.Mutex
	blocks map[uintptr]Prot
}

// NewHeap creates a heap allocator with the given page size.
func NewHeap(pageSize int) *Heap {
	return &Heap{pageSize: checkPageSize(pageSize), blocks: make(map[uintptr]Prot)}
}

func (h *Heap) Method() Method { return MethodHeap }
func (h *Heap) PageSize() int  { return h.pageSize }

func (h *Heap) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrBadSize
	}
	n := RoundUp(size, h.pageSize)
	raw := make([]byte, n+h.pageSize)
	off := RoundUp(int(Addr(raw)), h.pageSize) - int(Addr(raw))
	b := raw[off : off+n : off+n]
	h.Lock()
	h.blocks[Addr(b)] = ProtRW
	h.Unlock()
	return b, nil
}

func (h *Heap) Protect(b []byte, p Prot) error {
	h.Lock()
	defer h.Unlock()
	if _, ok := h.blocks[Addr(b)]; !ok {
		return ErrUnknownBlock
	}
	h.blocks[Addr(b)] = p
	return nil
}

func (h *Heap) Free(b []byte) error {
	h.Lock()
	defer h.Unlock()
	if _, ok := h.blocks[Addr(b)]; !ok {
		return ErrUnknownBlock
	}
	delete(h.blocks, Addr(b))
	return nil
}

// Prot reports the recorded protection of a live block.
func (h *Heap) Prot(b []byte) (p Prot, ok bool) {
	h.Lock()
	defer h.Unlock()
	p, ok = h.blocks[Addr(b)]
	return
}

// Live is the number of blocks not yet freed.
func (h *Heap) Live() int {
	h.Lock()
	defer h.Unlock()
	return len(h.blocks)
}
