package elfobj

import (
	"debug/elf"

	"github.com/ZenLiuCN/linker"
)

const (
	branchRange = 1 << 27 // +-128MiB of CALL26 and JUMP26
	adrpRange   = 1 << 32 // +-4GiB of ADRP
)

func page(v int64) int64 {
	return v &^ 0xfff
}

func applyAArch64(o *linker.Object, r *rela) error {
	S, A, P := int64(r.S), r.A, int64(r.P)
	switch typ := elf.R_AARCH64(r.typ); typ {
	case elf.R_AARCH64_NONE:
	case elf.R_AARCH64_ABS64:
		o.Poke64(r.P, uint64(S+A))
	case elf.R_AARCH64_ABS32:
		v := S + A
		if !fitsInt32(v) && !fitsUint32(v) {
			return overflow(r, v, "32 bits")
		}
		o.Poke32(r.P, uint32(v))
	case elf.R_AARCH64_PREL64:
		o.Poke64(r.P, uint64(S+A-P))
	case elf.R_AARCH64_PREL32:
		v := S + A - P
		if !fitsInt32(v) {
			return overflow(r, v, "signed 32 bits")
		}
		o.Poke32(r.P, uint32(v))
	case elf.R_AARCH64_CALL26, elf.R_AARCH64_JUMP26:
		v := S + A - P
		if (v < -branchRange || v >= branchRange) && !r.local && !r.undefW {
			v = int64(r.island(o).Code()) + A - P
		}
		if v < -branchRange || v >= branchRange {
			return overflow(r, v, "26 bit branch")
		}
		insn := o.Peek32(r.P)
		o.Poke32(r.P, insn&0xfc000000|uint32(v>>2)&0x03ffffff)
	case elf.R_AARCH64_ADR_PREL_PG_HI21, elf.R_AARCH64_ADR_GOT_PAGE:
		target := S + A
		if typ == elf.R_AARCH64_ADR_GOT_PAGE {
			target = int64(r.island(o).Addr())
		}
		v := page(target) - page(P)
		if v < -adrpRange || v >= adrpRange {
			return overflow(r, v, "21 bit page")
		}
		imm := uint32(v>>12) & 0x1fffff
		insn := o.Peek32(r.P) &^ (3<<29 | 0x7ffff<<5)
		o.Poke32(r.P, insn|(imm&3)<<29|(imm>>2)<<5)
	case elf.R_AARCH64_ADD_ABS_LO12_NC:
		setLo12(o, r, uint32(S+A)&0xfff)
	case elf.R_AARCH64_LDST8_ABS_LO12_NC:
		setLo12(o, r, uint32(S+A)&0xfff)
	case elf.R_AARCH64_LDST16_ABS_LO12_NC:
		setLo12(o, r, uint32(S+A)&0xfff>>1)
	case elf.R_AARCH64_LDST32_ABS_LO12_NC:
		setLo12(o, r, uint32(S+A)&0xfff>>2)
	case elf.R_AARCH64_LDST64_ABS_LO12_NC:
		setLo12(o, r, uint32(S+A)&0xfff>>3)
	case elf.R_AARCH64_LDST128_ABS_LO12_NC:
		setLo12(o, r, uint32(S+A)&0xfff>>4)
	case elf.R_AARCH64_LD64_GOT_LO12_NC:
		setLo12(o, r, uint32(r.island(o).Addr())&0xfff>>3)
	default:
		return unsupported(elf.EM_AARCH64, typ)
	}
	return nil
}

// setLo12 writes the 12 bit immediate of an add or load/store instruction.
func setLo12(o *linker.Object, r *rela, imm uint32) {
	insn := o.Peek32(r.P) &^ (0xfff << 10)
	o.Poke32(r.P, insn|imm<<10)
}
