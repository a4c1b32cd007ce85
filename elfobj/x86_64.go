package elfobj

import (
	"debug/elf"

	"github.com/ZenLiuCN/linker"
)

func applyX86_64(o *linker.Object, r *rela) error {
	S, A, P := int64(r.S), r.A, int64(r.P)
	switch typ := elf.R_X86_64(r.typ); typ {
	case elf.R_X86_64_NONE:
	case elf.R_X86_64_64:
		o.Poke64(r.P, uint64(S+A))
	case elf.R_X86_64_32:
		v := S + A
		if !fitsUint32(v) {
			return overflow(r, v, "32 bits")
		}
		o.Poke32(r.P, uint32(v))
	case elf.R_X86_64_32S:
		v := S + A
		if !fitsInt32(v) {
			return overflow(r, v, "signed 32 bits")
		}
		o.Poke32(r.P, uint32(v))
	case elf.R_X86_64_PC32, elf.R_X86_64_PLT32:
		v := S + A - P
		if !fitsInt32(v) && !r.local && !r.undefW {
			// too far for a rel32 branch, go through an island
			v = int64(r.island(o).Code()) + A - P
		}
		if !fitsInt32(v) {
			return overflow(r, v, "signed 32 bits")
		}
		o.Poke32(r.P, uint32(v))
	case elf.R_X86_64_PC64:
		o.Poke64(r.P, uint64(S+A-P))
	case elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX, elf.R_X86_64_REX_GOTPCRELX:
		// the island address word serves as the GOT entry, the load is not relaxed
		v := int64(r.island(o).Addr()) + A - P
		if !fitsInt32(v) {
			return overflow(r, v, "signed 32 bits")
		}
		o.Poke32(r.P, uint32(v))
	case elf.R_X86_64_GOTPCREL64:
		o.Poke64(r.P, uint64(int64(r.island(o).Addr())+A-P))
	default:
		return unsupported(elf.EM_X86_64, typ)
	}
	return nil
}
