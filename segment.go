package linker

import (
	"fmt"

	"github.com/ZenLiuCN/linker/mem"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// islandAlign is the alignment of the jump island table.
const islandAlign = 16

// Segment is a page aligned region whose pages share one protection.
type Segment struct {
	Start    uintptr
	Size     int
	Prot     mem.Prot
	Sections []int // indices of member sections
	Frozen   bool  // protection applied, no more writes

	mem []byte
}

// Contains reports whether addr lies in the segment.
func (s *Segment) Contains(addr uintptr) bool {
	return addr >= s.Start && addr < s.Start+uintptr(s.Size)
}

// packOrder is the order packed segments are built in.
var packOrder = [...]mem.Prot{mem.ProtRX, mem.ProtRO, mem.ProtRW}

// buildSegments allocates memory for every section of o and copies their content in.
//
// Small sections are packed into one segment per protection, the jump island table going at
// the end of the read-execute one. Sections of at least DirectMapThreshold bytes get a segment
// of their own.
func (l *Linker) buildSegments(o *Object, specs []SectionSpec, slots int) (err error) {
	o.sections = make([]Section, len(specs))
	packed := make(map[mem.Prot][]int, len(packOrder))
	var direct []int
	for i := range specs {
		s := &specs[i]
		if s.Size < len(s.Data) {
			return fmt.Errorf("section %q: size %d smaller than its %d bytes of data", s.Name, s.Size, len(s.Data))
		}
		if s.Align < 0 || s.Align&(s.Align-1) != 0 {
			return fmt.Errorf("section %q: alignment %d is not a power of two", s.Name, s.Align)
		}
		o.sections[i] = Section{Name: s.Name, Size: s.Size, Kind: s.Kind, Segment: -1}
		switch {
		case !s.Kind.Allocated() || s.Size == 0:
			// stays a view into the image
			if len(s.Data) > 0 {
				o.sections[i].Start = mem.Addr(s.Data)
				o.sections[i].mem = s.Data
			}
		case s.Size >= l.cfg.DirectMapThreshold:
			direct = append(direct, i)
		default:
			packed[s.Prot()] = append(packed[s.Prot()], i)
		}
	}
	defer func() {
		if err != nil {
			if ferr := l.freeSegments(o); ferr != nil {
				err = multierror.Append(err, ferr)
			}
		}
	}()
	o.extraSlots = slots
	for _, prot := range packOrder {
		members := packed[prot]
		islands := 0
		if prot == mem.ProtRX {
			islands = slots * l.arch.IslandSize
		}
		if len(members) == 0 && islands == 0 {
			continue
		}
		offsets := make([]int, len(members))
		size := 0
		for j, idx := range members {
			size = mem.RoundUp(size, alignOf(&specs[idx]))
			offsets[j] = size
			size += specs[idx].Size
		}
		islandOff := mem.RoundUp(size, islandAlign)
		if islands > 0 {
			size = islandOff + islands
		}
		seg, err := l.allocSegment(o, size, prot)
		if err != nil {
			return err
		}
		for j, idx := range members {
			sec := &o.sections[idx]
			sec.mem = seg.mem[offsets[j] : offsets[j]+specs[idx].Size : offsets[j]+specs[idx].Size]
			sec.Start = mem.Addr(sec.mem)
			sec.Alloc = AllocSmall
			sec.Segment = len(o.segments) - 1
			copy(sec.mem, specs[idx].Data)
			seg.Sections = append(seg.Sections, idx)
		}
		if islands > 0 {
			o.extraBase = seg.Start + uintptr(islandOff)
		}
	}
	for _, idx := range direct {
		spec := &specs[idx]
		seg, err := l.allocSegment(o, spec.Size, spec.Prot())
		if err != nil {
			return err
		}
		sec := &o.sections[idx]
		sec.mem = seg.mem[:spec.Size:spec.Size]
		sec.Start = seg.Start
		sec.Alloc = AllocMmap
		if l.alloc.Method() == mem.MethodHeap {
			sec.Alloc = AllocHeap
		}
		sec.Segment = len(o.segments) - 1
		sec.MappedStart, sec.MappedSize, sec.MappedOffset = seg.Start, seg.Size, 0
		copy(sec.mem, spec.Data)
		seg.Sections = append(seg.Sections, idx)
	}
	return nil
}

func alignOf(s *SectionSpec) int {
	if s.Align <= 0 {
		return 1
	}
	return s.Align
}

// allocSegment appends a new writable segment to o.
func (l *Linker) allocSegment(o *Object, size int, prot mem.Prot) (*Segment, error) {
	b, err := l.alloc.Alloc(size)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %d bytes for %s segment", size, prot)
	}
	o.segments = append(o.segments, Segment{Start: mem.Addr(b), Size: len(b), Prot: prot, mem: b})
	l.debug("segment allocated", "object", o.Name(), "start", fmt.Sprintf("%#x", mem.Addr(b)), "size", len(b), "prot", prot)
	return &o.segments[len(o.segments)-1], nil
}

// protectSegments applies the final protection of every segment, once.
func (l *Linker) protectSegments(o *Object) error {
	for i := range o.segments {
		seg := &o.segments[i]
		if seg.Frozen {
			l.barf("%s: segment %d protected twice", o.Name(), i)
		}
		if err := l.alloc.Protect(seg.mem, seg.Prot); err != nil {
			return errors.Wrapf(err, "protect segment %d as %s", i, seg.Prot)
		}
		seg.Frozen = true
	}
	return nil
}

// freeSegments returns the memory of every segment to the allocator.
func (l *Linker) freeSegments(o *Object) error {
	var result error
	for i := range o.segments {
		if err := l.alloc.Free(o.segments[i].mem); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "free segment %d", i))
		}
	}
	o.segments = nil
	for i := range o.sections {
		if o.sections[i].Segment >= 0 {
			o.sections[i].Start, o.sections[i].mem, o.sections[i].Segment = 0, nil, -1
		}
	}
	o.extraBase = 0
	return result
}
