package linker

import (
	"bytes"
	"encoding/binary"
	"runtime"

	"github.com/ZenLiuCN/linker/archive"
	"github.com/ZenLiuCN/linker/goobj"
	"github.com/pkg/errors"
)

// FormatTag names an object file format.
type FormatTag int

const (
	FormatUnknown FormatTag = iota
	FormatELF
	FormatPE
	FormatMachO
)

func (f FormatTag) String() string {
	switch f {
	case FormatELF:
		return "ELF"
	case FormatPE:
		return "PE"
	case FormatMachO:
		return "Mach-O"
	default:
		return "unknown"
	}
}

// Format is a parser collaborator for one object format.
type Format interface {
	Tag() FormatTag
	// Match reports whether data is an image this format handles.
	Match(data []byte) bool
	// Parse validates the image of o and discovers its sections, symbols and relocations.
	Parse(o *Object) (Info, error)
}

// Info is the format specific payload attached to a loaded object.
type Info interface {
	Format() FormatTag
	// Sections to build, in the order section indices refer to them.
	Sections() []SectionSpec
	// Symbols the object defines.
	Symbols() []SymbolSpec
	// ExtraSlots is an upper bound on the jump islands relocation may ask for.
	ExtraSlots() int
	// Relocate applies every relocation through the checked writers of o.
	Relocate(o *Object) error
}

// SymbolSpec is a definition discovered by a format.
type SymbolSpec struct {
	Name     string
	Section  int    // index into Info.Sections, negative for absolute symbols
	Value    uint64 // offset in the section, or the absolute address
	Strength Strength
}

var (
	magicELF   = []byte{0x7f, 'E', 'L', 'F'}
	magicPE    = []byte{0x4c, 0x01} // i386 COFF
	magicPE64  = []byte{0x64, 0x86} // amd64 COFF
	magicMachO = []uint32{0xfeedface, 0xfeedfacf, 0xcefaedfe, 0xcffaedfe}
)

// DetectFormat sniffs the magic number of an image.
func DetectFormat(data []byte) FormatTag {
	switch {
	case bytes.HasPrefix(data, magicELF):
		return FormatELF
	case bytes.HasPrefix(data, magicPE), bytes.HasPrefix(data, magicPE64):
		return FormatPE
	case len(data) >= 4:
		m := binary.LittleEndian.Uint32(data)
		for _, v := range magicMachO {
			if m == v {
				return FormatMachO
			}
		}
	}
	return FormatUnknown
}

// IsArchive reports whether data starts like an ar archive.
func IsArchive(data []byte) bool {
	return archive.IsArchive(data)
}

// nativeFormat is the object format of the host OS.
func nativeFormat() FormatTag {
	switch runtime.GOOS {
	case "windows":
		return FormatPE
	case "darwin", "ios":
		return FormatMachO
	case "js", "wasip1", "plan9":
		return FormatUnknown
	default:
		return FormatELF
	}
}

// format picks the handler for data. A native image nobody handles is a fatal misconfiguration.
func (l *Linker) format(o *Object) (Format, error) {
	for _, f := range l.formats {
		if f.Match(o.image.Data) {
			return f, nil
		}
	}
	if tag := DetectFormat(o.image.Data); tag != FormatUnknown && tag == nativeFormat() {
		l.barf("%s: no handler for %s objects", o.Name(), tag)
	}
	if goobj.IsGoObject(o.image.Data) {
		return nil, errors.Wrap(ErrUnknownFormat, "gc object file")
	}
	return nil, ErrUnknownFormat
}
