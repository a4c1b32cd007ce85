package linker

import (
	"unsafe"
)

// ProddableBlock is a range relocation is allowed to write to.
type ProddableBlock struct {
	Start uintptr
	Size  int
	mem   []byte
}

func (b *ProddableBlock) contains(addr uintptr, size int) bool {
	return addr >= b.Start && addr+uintptr(size) <= b.Start+uintptr(b.Size)
}

// addProddableBlock whitelists b for relocation writes.
func (o *Object) addProddableBlock(b []byte) {
	if len(b) == 0 {
		return
	}
	o.proddables = append(o.proddables, ProddableBlock{Start: uintptr(unsafe.Pointer(&b[0])), Size: len(b), mem: b})
}

// prepareProddables whitelists every allocated section and the jump island table.
func (o *Object) prepareProddables() {
	for i := range o.sections {
		if o.sections[i].Segment >= 0 {
			o.addProddableBlock(o.sections[i].mem)
		}
	}
	if o.extraSlots > 0 && o.extraBase != 0 {
		seg := o.segmentAt(o.extraBase)
		off := int(o.extraBase - seg.Start)
		o.addProddableBlock(seg.mem[off : off+o.extraSlots*o.linker.arch.IslandSize])
	}
}

func (o *Object) freeProddables() {
	o.proddables = nil
}

// ProddableBlocks lists the ranges currently open for writes.
func (o *Object) ProddableBlocks() []ProddableBlock {
	return o.proddables
}

// prodd returns the window of size bytes at addr, aborting when no block covers it.
func (o *Object) prodd(addr uintptr, size int) []byte {
	for i := range o.proddables {
		b := &o.proddables[i]
		if b.contains(addr, size) {
			off := int(addr - b.Start)
			return b.mem[off : off+size]
		}
	}
	o.linker.barf("%s: relocation write of %d bytes at %#x outside every proddable block", o.Name(), size, addr)
	return nil
}

// Poke32 writes a 32 bit word at addr.
func (o *Object) Poke32(addr uintptr, v uint32) {
	o.linker.arch.ByteOrder.PutUint32(o.prodd(addr, 4), v)
}

// Poke64 writes a 64 bit word at addr.
func (o *Object) Poke64(addr uintptr, v uint64) {
	o.linker.arch.ByteOrder.PutUint64(o.prodd(addr, 8), v)
}

// PokeBytes copies b to addr.
func (o *Object) PokeBytes(addr uintptr, b []byte) {
	copy(o.prodd(addr, len(b)), b)
}

// Peek32 reads back a 32 bit word at addr, under the same check as writes.
func (o *Object) Peek32(addr uintptr) uint32 {
	return o.linker.arch.ByteOrder.Uint32(o.prodd(addr, 4))
}

func (o *Object) segmentAt(addr uintptr) *Segment {
	for i := range o.segments {
		if o.segments[i].Contains(addr) {
			return &o.segments[i]
		}
	}
	o.linker.barf("%s: no segment holds %#x", o.Name(), addr)
	return nil
}
