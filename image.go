package linker

import (
	"github.com/ZenLiuCN/linker/mem"
)

// imageAlign is the alignment heap copies of images are given.
const imageAlign = 16

// Image is the raw content of an object file or archive member.
type Image struct {
	Path   string
	Member string // archive member, empty for plain files
	Data   []byte
	// Mapped is set when Data is a file mapping rather than a heap copy.
	Mapped bool
	// Misalignment is how far Data starts past the beginning of its heap buffer, so that the
	// buffer can be reallocated keeping Data aligned.
	Misalignment int

	raw     []byte
	release func() error
}

// NewImage copies data into an aligned heap buffer.
func NewImage(path, member string, data []byte) *Image {
	raw := make([]byte, len(data)+imageAlign)
	off := mem.RoundUp(int(mem.Addr(raw)), imageAlign) - int(mem.Addr(raw))
	img := &Image{
		Path:         path,
		Member:       member,
		Data:         raw[off : off+len(data)],
		Misalignment: off,
		raw:          raw,
	}
	copy(img.Data, data)
	return img
}

// ReadImage maps path when the host allows it, otherwise reads it into the heap.
func ReadImage(path string) (*Image, error) {
	data, release, err := mem.MapFile(path)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return NewImage(path, "", data), nil
	}
	return &Image{Path: path, Data: data, Mapped: true, release: release}, nil
}

// Size of the image in bytes.
func (i *Image) Size() int {
	return len(i.Data)
}

// Grow extends the heap copy by n zero bytes keeping its alignment. Mapped images are copied
// to the heap first.
func (i *Image) Grow(n int) error {
	data := i.Data
	wasMapped := i.Mapped
	raw := make([]byte, len(data)+n+imageAlign)
	off := mem.RoundUp(int(mem.Addr(raw)), imageAlign) - int(mem.Addr(raw))
	copy(raw[off:], data)
	if wasMapped {
		if err := i.Free(); err != nil {
			return err
		}
	}
	i.raw, i.Data, i.Misalignment = raw, raw[off:off+len(data)+n], off
	return nil
}

// Free releases the mapping of a mapped image and drops the buffer.
func (i *Image) Free() (err error) {
	if i.release != nil {
		err = i.release()
		i.release = nil
	}
	i.Mapped = false
	i.Data, i.raw = nil, nil
	return
}

// Discard frees an image the linker did not take, reporting a failed unmap.
func (l *Linker) Discard(img *Image) {
	if err := img.Free(); err != nil {
		l.report("free image failed", err, "object", img.Path, "member", img.Member)
	}
}
