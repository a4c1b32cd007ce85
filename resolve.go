package linker

import (
	"fmt"
)

// Resolved is the symbol an address falls in.
type Resolved struct {
	Name   string
	Offset uintptr
	Object *Object
}

func (r Resolved) String() string {
	if r.Offset == 0 {
		return r.Name
	}
	return fmt.Sprintf("%s+%#x", r.Name, r.Offset)
}

// ResolveAddr finds the nearest symbol at or below addr inside the sections of a ready object.
func (l *Linker) ResolveAddr(addr uintptr) (Resolved, bool) {
	if r, ok := l.resolved.Get(addr); ok {
		return r, true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range l.loaded {
		o := l.objects[id]
		sec := o.sectionAt(addr)
		if sec == nil {
			continue
		}
		var best *SymbolRef
		for i := range o.symbols {
			s := &o.symbols[i]
			if s.Addr <= addr && sec.Contains(s.Addr) && (best == nil || s.Addr > best.Addr) {
				best = s
			}
		}
		if best == nil {
			return Resolved{}, false
		}
		r := Resolved{Name: best.Name, Offset: addr - best.Addr, Object: o}
		l.resolved.Add(addr, r)
		return r, true
	}
	return Resolved{}, false
}

func (o *Object) sectionAt(addr uintptr) *Section {
	for i := range o.sections {
		if o.sections[i].Segment >= 0 && o.sections[i].Contains(addr) {
			return &o.sections[i]
		}
	}
	return nil
}

// purgeResolved drops cached addresses of o.
func (l *Linker) purgeResolved(o *Object) {
	for _, k := range l.resolved.Keys() {
		if r, ok := l.resolved.Peek(k); ok && r.Object == o {
			l.resolved.Remove(k)
		}
	}
}
