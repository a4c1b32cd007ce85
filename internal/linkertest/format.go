// Package linkertest provides an in-memory object format to drive a linker in tests.
package linkertest

import (
	"bytes"
	"sync"

	"github.com/ZenLiuCN/linker"
	"github.com/pkg/errors"
)

// Magic starts every image of the format.
const Magic = "TOBJ"

// RelocKind tells how a Reloc is applied.
type RelocKind int

const (
	// Abs64 writes the address of Symbol.
	Abs64 RelocKind = iota
	// Island writes the code address of the jump island of Symbol.
	Island
	// Stray writes Value at Offset without looking at the section bounds.
	Stray
)

// Reloc patches 8 bytes at Offset in Section.
type Reloc struct {
	Kind    RelocKind
	Section int
	Offset  int
	Symbol  string
	Value   uint64
}

// Object describes the content of one image.
type Object struct {
	Sections []linker.SectionSpec
	Symbols  []linker.SymbolSpec
	Relocs   []Reloc
	Slots    int
	// ParseErr and RelocErr fail the matching stage.
	ParseErr error
	RelocErr error
}

// Format resolves images by object name, path(member) for archive members.
type Format struct {
	mu      sync.Mutex
	objects map[string]*Object
	parsed  map[string]int
}

// NewFormat creates an empty format.
func NewFormat() *Format {
	return &Format{objects: make(map[string]*Object), parsed: make(map[string]int)}
}

// Add registers the content of the object named name and returns a fresh image for it, which
// is only meaningful for plain files.
func (f *Format) Add(name string, o *Object) *linker.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = o
	return Image(name)
}

// Image is a fresh image for path.
func Image(path string) *linker.Image {
	return linker.NewImage(path, "", []byte(Magic))
}

// Parsed counts how many times the object named name was parsed.
func (f *Format) Parsed(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parsed[name]
}

func (f *Format) Tag() linker.FormatTag {
	return linker.FormatUnknown
}

func (f *Format) Match(data []byte) bool {
	return bytes.HasPrefix(data, []byte(Magic))
}

func (f *Format) Parse(o *linker.Object) (linker.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[o.Name()]
	if !ok {
		return nil, errors.Errorf("no test object %s", o.Name())
	}
	f.parsed[o.Name()]++
	if obj.ParseErr != nil {
		return nil, obj.ParseErr
	}
	return &info{obj}, nil
}

type info struct {
	*Object
}

func (i *info) Format() linker.FormatTag       { return linker.FormatUnknown }
func (i *info) Sections() []linker.SectionSpec { return i.Object.Sections }
func (i *info) Symbols() []linker.SymbolSpec   { return i.Object.Symbols }
func (i *info) ExtraSlots() int                { return i.Slots }

func (i *info) Relocate(o *linker.Object) error {
	for _, r := range i.Relocs {
		place := o.Section(r.Section).Start + uintptr(r.Offset)
		switch r.Kind {
		case Abs64:
			addr, err := o.Resolve(r.Symbol)
			if err != nil {
				return err
			}
			o.Poke64(place, uint64(addr))
		case Island:
			addr, err := o.Resolve(r.Symbol)
			if err != nil {
				return err
			}
			o.Poke64(place, uint64(o.JumpIsland(r.Symbol, addr).Code()))
		case Stray:
			o.Poke64(place, r.Value)
		}
	}
	return i.RelocErr
}

// Code is a read-execute section of size bytes.
func Code(name string, size int) linker.SectionSpec {
	return linker.SectionSpec{Name: name, Kind: linker.KindCodeOrRodata, Exec: true, Data: make([]byte, size), Size: size, Align: 16}
}

// Data is a read-write section of size bytes.
func Data(name string, size int) linker.SectionSpec {
	return linker.SectionSpec{Name: name, Kind: linker.KindRWData, Data: make([]byte, size), Size: size, Align: 8}
}

// Def defines name at offset in section.
func Def(name string, section int, offset uint64, strength linker.Strength) linker.SymbolSpec {
	return linker.SymbolSpec{Name: name, Section: section, Value: offset, Strength: strength}
}
