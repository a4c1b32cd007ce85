package linker

import (
	"fmt"

	"github.com/ZenLiuCN/linker/mem"
)

// SectionKind classifies a section for protection and unloading.
type SectionKind int

const (
	KindCodeOrRodata    SectionKind = iota // .text, .rodata
	KindRWData                             // .data, .bss
	KindInitArray                          // static initializers, .init_array/.ctors
	KindFiniArray                          // static finalizers, .fini_array/.dtors
	KindOther                              // not needed at run time
	KindDebug                              // debug information
	KindExceptionTable                     // .pdata
	KindExceptionUnwind                    // .xdata, .eh_frame
	KindImport                             // import section group, .idata$
	KindImportLibrary                      // import library definition, .idata$7
	KindNoInfoAvail
)

var kindNames = [...]string{
	"code-or-rodata", "rw-data", "init-array", "fini-array", "other", "debug",
	"exception-table", "exception-unwind", "import", "import-library", "no-info",
}

func (k SectionKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("SectionKind(%d)", int(k))
}

// Allocated reports whether sections of this kind take memory at run time.
func (k SectionKind) Allocated() bool {
	switch k {
	case KindOther, KindDebug, KindNoInfoAvail:
		return false
	}
	return true
}

// SectionAlloc tells how the memory of a section was obtained.
type SectionAlloc int

const (
	AllocNone  SectionAlloc = iota // a view into the image, or nothing
	AllocSmall                     // packed with other small sections of the object
	AllocMmap                      // a mapping of its own
	AllocHeap                      // a heap block of its own
)

func (a SectionAlloc) String() string {
	switch a {
	case AllocSmall:
		return "small"
	case AllocMmap:
		return "mmap"
	case AllocHeap:
		return "heap"
	default:
		return "none"
	}
}

// SectionSpec is a section discovered by a format.
type SectionSpec struct {
	Name  string
	Kind  SectionKind
	Exec  bool   // code, only meaningful for KindCodeOrRodata
	Data  []byte // initial content, nil for zero filled sections
	Size  int    // size in memory, at least len(Data)
	Align int    // power of two, 0 means 1
}

// Prot is the protection the section ends up with.
func (s *SectionSpec) Prot() mem.Prot {
	switch s.Kind {
	case KindCodeOrRodata:
		if s.Exec {
			return mem.ProtRX
		}
		return mem.ProtRO
	case KindRWData, KindInitArray, KindFiniArray:
		return mem.ProtRW
	default:
		return mem.ProtRO
	}
}

// Section is a classified byte range of a loaded object.
type Section struct {
	Name    string
	Start   uintptr
	Size    int
	Kind    SectionKind
	Alloc   SectionAlloc
	Segment int // index into the segments of the object, -1 when not allocated

	// set for sections with a mapping of their own
	MappedOffset int
	MappedStart  uintptr
	MappedSize   int

	mem []byte
}

// Bytes is the memory of the section. It must not be written once the object is ready.
func (s *Section) Bytes() []byte {
	return s.mem
}

// Contains reports whether addr lies in the section.
func (s *Section) Contains(addr uintptr) bool {
	return s.Start != 0 && addr >= s.Start && addr < s.Start+uintptr(s.Size)
}
