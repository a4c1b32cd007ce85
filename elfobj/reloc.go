package elfobj

import (
	"debug/elf"
	"fmt"
	"math"

	"github.com/ZenLiuCN/linker"
	"github.com/pkg/errors"
)

// rela is one relocation entry, resolved against the loaded object.
type rela struct {
	typ    uint32
	sym    uint32
	name   string  // island key of the symbol
	S      uint64  // symbol address
	A      int64   // addend
	P      uintptr // place being relocated
	local  bool    // symbol defined by this object
	undefW bool    // undefined weak symbol
}

const relaSize = 24

// Relocate applies every relocation of allocated sections.
func (i *Info) Relocate(o *linker.Object) error {
	apply := applyX86_64
	if i.machine == elf.EM_AARCH64 {
		apply = applyAArch64
	}
	for si, s := range i.file.Sections {
		switch s.Type {
		case elf.SHT_RELA:
		case elf.SHT_REL:
			return errors.Errorf("ELF: section %d %q: REL relocations on %s", si, s.Name, i.machine)
		default:
			continue
		}
		target := int(s.Info)
		if target <= 0 || target >= len(o.Sections()) {
			return errors.Errorf("ELF: section %d %q relocates invalid section %d", si, s.Name, target)
		}
		sec := o.Section(target)
		if sec.Segment < 0 {
			// debug and other sections that are not loaded
			continue
		}
		data, err := s.Data()
		if err != nil {
			return errors.Wrapf(err, "ELF: section %d %q", si, s.Name)
		}
		if len(data)%relaSize != 0 {
			return errors.Errorf("ELF: section %d %q: length %d is not a multiple of %d", si, s.Name, len(data), relaSize)
		}
		for off := 0; off < len(data); off += relaSize {
			roff := i.file.ByteOrder.Uint64(data[off:])
			info := i.file.ByteOrder.Uint64(data[off+8:])
			r := rela{
				typ: uint32(info),
				sym: uint32(info >> 32),
				A:   int64(i.file.ByteOrder.Uint64(data[off+16:])),
				P:   sec.Start + uintptr(roff),
			}
			if roff >= uint64(sec.Size) {
				return errors.Errorf("ELF: relocation at %#x beyond section %q", roff, sec.Name)
			}
			if err = i.symbol(o, &r); err != nil {
				return errors.Wrapf(err, "relocation at %s+%#x", sec.Name, roff)
			}
			if err = apply(o, &r); err != nil {
				return errors.Wrapf(err, "relocation at %s+%#x", sec.Name, roff)
			}
		}
	}
	return nil
}

// symbol resolves the symbol of r. Global names go through the linker so that stronger
// definitions elsewhere win.
func (i *Info) symbol(o *linker.Object, r *rela) error {
	if r.sym == 0 {
		r.local = true
		return nil
	}
	if int(r.sym) > len(i.syms) {
		return errors.Errorf("symbol reference %d out of bounds", r.sym)
	}
	s := &i.syms[r.sym-1]
	r.name = s.Name
	bind := elf.ST_BIND(s.Info)
	switch {
	case s.Section == elf.SHN_ABS:
		r.S, r.local = s.Value, true
		return nil
	case bind != elf.STB_LOCAL && s.Name != "":
		addr, err := o.Resolve(s.Name)
		if err == nil {
			r.S = uint64(addr)
			r.local = s.Section != elf.SHN_UNDEF && o.Section(int(s.Section)).Contains(addr)
			return nil
		}
		if s.Section == elf.SHN_UNDEF && bind == elf.STB_WEAK {
			r.undefW = true
			return nil
		}
		if s.Section == elf.SHN_UNDEF {
			return err
		}
	case s.Section == elf.SHN_UNDEF:
		return errors.Wrapf(linker.ErrMissingSymbol, "local %q", s.Name)
	}
	if int(s.Section) >= len(o.Sections()) {
		return errors.Errorf("symbol %q in section %d", s.Name, s.Section)
	}
	sec := o.Section(int(s.Section))
	if sec.Start == 0 {
		return errors.Errorf("symbol %q in unloaded section %q", s.Name, sec.Name)
	}
	r.S, r.local = uint64(sec.Start)+s.Value, true
	if r.name == "" {
		r.name = fmt.Sprintf("%s+%#x", sec.Name, s.Value)
	}
	return nil
}

// island returns the jump island of r's symbol.
func (r *rela) island(o *linker.Object) linker.SymbolExtra {
	return o.JumpIsland(r.name, uintptr(r.S))
}

func fitsInt32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

func fitsUint32(v int64) bool {
	return v >= 0 && v <= math.MaxUint32
}

func overflow(r *rela, v int64, bits string) error {
	return errors.Wrapf(linker.ErrRelocationOverflow, "%#x does not fit %s (symbol %q)", v, bits, r.name)
}

func unsupported(machine elf.Machine, typ fmt.Stringer) error {
	return errors.Wrapf(linker.ErrUnsupportedRelocation, "%s %s", machine, typ)
}
