// Package elfobj loads ELF64 little endian relocatable objects (.o files) for amd64 and arm64.
package elfobj

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"strings"

	"github.com/ZenLiuCN/linker"
	"github.com/pkg/errors"
)

var (
	// ErrCommonSymbol occurs on tentative definitions, objects must be built with -fno-common.
	ErrCommonSymbol = errors.New("common symbols are not supported")
	// ErrMachine occurs when the object targets another architecture than the linker.
	ErrMachine = errors.New("object machine does not match the linker")
)

// shtX86_64Unwind is the section type of .eh_frame on amd64.
const shtX86_64Unwind elf.SectionType = 0x70000001

var machines = map[string]elf.Machine{
	"amd64": elf.EM_X86_64,
	"arm64": elf.EM_AARCH64,
}

// Format handles ELF relocatable objects.
type Format struct{}

// New creates the ELF format.
func New() *Format {
	return &Format{}
}

func (*Format) Tag() linker.FormatTag {
	return linker.FormatELF
}

// Match accepts 64 bit little endian relocatable objects of a known machine.
func (*Format) Match(data []byte) bool {
	if len(data) < 20 || !bytes.HasPrefix(data, []byte(elf.ELFMAG)) {
		return false
	}
	if elf.Class(data[elf.EI_CLASS]) != elf.ELFCLASS64 || elf.Data(data[elf.EI_DATA]) != elf.ELFDATA2LSB {
		return false
	}
	if elf.Type(binary.LittleEndian.Uint16(data[16:])) != elf.ET_REL {
		return false
	}
	switch elf.Machine(binary.LittleEndian.Uint16(data[18:])) {
	case elf.EM_X86_64, elf.EM_AARCH64:
		return true
	}
	return false
}

// Parse validates the image of o and collects its sections and symbols.
func (*Format) Parse(o *linker.Object) (linker.Info, error) {
	data := o.Image().Data
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "ELF")
	}
	if f.Type != elf.ET_REL {
		return nil, errors.Errorf("ELF: %s is not a relocatable object", f.Type)
	}
	if want, ok := machines[o.Arch().Name]; !ok || f.Machine != want {
		return nil, errors.Wrapf(ErrMachine, "%s for %s", f.Machine, o.Arch().Name)
	}
	info := &Info{file: f, machine: f.Machine}
	if info.sections, err = readSections(f, data); err != nil {
		return nil, err
	}
	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, errors.Wrap(err, "ELF: symbols")
	}
	info.syms = syms
	if info.symbols, err = readSymbols(f, syms); err != nil {
		return nil, err
	}
	return info, nil
}

// Info is the parsed form of one object. Section indices are ELF section indices.
type Info struct {
	file     *elf.File
	machine  elf.Machine
	sections []linker.SectionSpec
	symbols  []linker.SymbolSpec
	syms     []elf.Symbol // symbol i of the ELF table is syms[i-1]
}

func (i *Info) Format() linker.FormatTag       { return linker.FormatELF }
func (i *Info) Sections() []linker.SectionSpec { return i.sections }
func (i *Info) Symbols() []linker.SymbolSpec   { return i.symbols }

// ExtraSlots bounds the jump islands and GOT entries by the number of symbols.
func (i *Info) ExtraSlots() int {
	return len(i.syms)
}

// Machine the object was built for.
func (i *Info) Machine() elf.Machine {
	return i.machine
}

func readSections(f *elf.File, data []byte) ([]linker.SectionSpec, error) {
	specs := make([]linker.SectionSpec, len(f.Sections))
	for i, s := range f.Sections {
		spec := linker.SectionSpec{
			Name:  s.Name,
			Kind:  kindOf(s),
			Exec:  s.Flags&elf.SHF_EXECINSTR != 0,
			Size:  int(s.Size),
			Align: int(s.Addralign),
		}
		if spec.Align == 0 {
			spec.Align = 1
		}
		if spec.Align&(spec.Align-1) != 0 {
			return nil, errors.Errorf("ELF: section %d %q: alignment %d", i, s.Name, s.Addralign)
		}
		switch {
		case s.Type == elf.SHT_NOBITS:
		case s.Flags&elf.SHF_ALLOC == 0 && spec.Kind != linker.KindDebug:
			// symbol, string and relocation tables are read through debug/elf
			spec.Size = 0
		default:
			end := s.Offset + s.FileSize
			if end < s.Offset || end > uint64(len(data)) {
				return nil, errors.Errorf("ELF: section %d %q overruns the image", i, s.Name)
			}
			spec.Data = data[s.Offset:end:end]
			spec.Size = len(spec.Data)
		}
		specs[i] = spec
	}
	return specs, nil
}

func kindOf(s *elf.Section) linker.SectionKind {
	switch {
	case s.Type == elf.SHT_NULL:
		return linker.KindNoInfoAvail
	case strings.HasPrefix(s.Name, ".debug") || strings.HasPrefix(s.Name, ".zdebug"):
		return linker.KindDebug
	case s.Flags&elf.SHF_ALLOC == 0:
		return linker.KindOther
	case s.Type == elf.SHT_INIT_ARRAY || s.Type == elf.SHT_PREINIT_ARRAY || strings.HasPrefix(s.Name, ".ctors"):
		return linker.KindInitArray
	case s.Type == elf.SHT_FINI_ARRAY || strings.HasPrefix(s.Name, ".dtors"):
		return linker.KindFiniArray
	case s.Type == shtX86_64Unwind || s.Name == ".eh_frame":
		return linker.KindExceptionUnwind
	case s.Type == elf.SHT_GROUP || s.Type == elf.SHT_NOTE:
		return linker.KindOther
	case s.Flags&elf.SHF_WRITE != 0:
		return linker.KindRWData
	default:
		return linker.KindCodeOrRodata
	}
}

// readSymbols lists the global and weak definitions.
func readSymbols(f *elf.File, syms []elf.Symbol) ([]linker.SymbolSpec, error) {
	var specs []linker.SymbolSpec
	for _, s := range syms {
		bind := elf.ST_BIND(s.Info)
		if bind == elf.STB_LOCAL || s.Name == "" {
			continue
		}
		switch typ := elf.ST_TYPE(s.Info); {
		case typ == elf.STT_SECTION || typ == elf.STT_FILE:
			continue
		case s.Section == elf.SHN_COMMON:
			return nil, errors.Wrapf(ErrCommonSymbol, "%q", s.Name)
		case s.Section == elf.SHN_UNDEF:
			continue
		}
		spec := linker.SymbolSpec{Name: s.Name, Section: int(s.Section), Value: s.Value, Strength: linker.StrengthNormal}
		if s.Section == elf.SHN_ABS {
			spec.Section = -1
		} else if int(s.Section) >= len(f.Sections) {
			return nil, errors.Errorf("ELF: symbol %q in section %d of %d", s.Name, s.Section, len(f.Sections))
		}
		if bind == elf.STB_WEAK {
			spec.Strength = linker.StrengthWeak
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
