package linker

import (
	"encoding/binary"
	"runtime"

	"github.com/pkg/errors"
)

// Arch describes the jump island layout of one architecture.
//
// A slot holds the absolute target in an 8 byte word, which also serves as a GOT entry, and a
// short indirect jump through that word.
type Arch struct {
	Name       string
	ByteOrder  binary.ByteOrder
	IslandSize int
	addrOffset int
	codeOffset int
	code       []byte
}

var (
	// ArchAMD64 island: target word, then jmp *-14(%rip).
	ArchAMD64 = &Arch{
		Name:       "amd64",
		ByteOrder:  binary.LittleEndian,
		IslandSize: 16,
		addrOffset: 0,
		codeOffset: 8,
		code:       []byte{0xff, 0x25, 0xf2, 0xff, 0xff, 0xff, 0x90, 0x90},
	}
	// ArchARM64 island: ldr x16, #8; br x16, then the target word.
	ArchARM64 = &Arch{
		Name:       "arm64",
		ByteOrder:  binary.LittleEndian,
		IslandSize: 16,
		addrOffset: 8,
		codeOffset: 0,
		code:       []byte{0x50, 0x00, 0x00, 0x58, 0x00, 0x02, 0x1f, 0xd6},
	}
)

func archFor(name string) (*Arch, error) {
	if name == "" {
		name = runtime.GOARCH
	}
	switch name {
	case "amd64":
		return ArchAMD64, nil
	case "arm64":
		return ArchARM64, nil
	}
	return nil, errors.Errorf("unsupported architecture %q", name)
}

// SymbolExtra is one allocated jump island.
type SymbolExtra struct {
	Name   string
	Slot   uintptr
	Target uintptr
	arch   *Arch
}

// Addr is the address of the word holding the absolute target.
func (e SymbolExtra) Addr() uintptr {
	return e.Slot + uintptr(e.arch.addrOffset)
}

// Code is the address to branch to.
func (e SymbolExtra) Code() uintptr {
	return e.Slot + uintptr(e.arch.codeOffset)
}

// JumpIsland returns the island for name, creating it with target on first use.
//
// Islands live in the slots reserved at the tail of the object's code segment and are written
// through the proddable check, so they can only be created while relocating.
func (o *Object) JumpIsland(name string, target uintptr) SymbolExtra {
	if i, ok := o.extraIndex[name]; ok {
		return o.extras[i]
	}
	arch := o.linker.arch
	if len(o.extras) >= o.extraSlots {
		o.linker.barf("%s: jump islands exhausted at %d slots (symbol %q)", o.Name(), o.extraSlots, name)
	}
	e := SymbolExtra{
		Name:   name,
		Slot:   o.extraBase + uintptr(len(o.extras)*arch.IslandSize),
		Target: target,
		arch:   arch,
	}
	slot := make([]byte, arch.IslandSize)
	arch.ByteOrder.PutUint64(slot[arch.addrOffset:], uint64(target))
	copy(slot[arch.codeOffset:], arch.code)
	o.PokeBytes(e.Slot, slot)
	if o.extraIndex == nil {
		o.extraIndex = make(map[string]int)
	}
	o.extraIndex[name] = len(o.extras)
	o.extras = append(o.extras, e)
	o.linker.metrics.JumpIslands.Inc()
	return e
}

// Extras lists the islands allocated so far.
func (o *Object) Extras() []SymbolExtra {
	return o.extras
}
