package linker

import (
	"fmt"

	"github.com/ZenLiuCN/fn"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Strength is the resolution priority of a definition, weak < normal < strong.
type Strength int

const (
	StrengthNormal Strength = iota
	StrengthWeak
	StrengthStrong
)

// rank orders strengths for comparison.
func (s Strength) rank() int {
	switch s {
	case StrengthWeak:
		return 0
	case StrengthStrong:
		return 2
	default:
		return 1
	}
}

func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "weak"
	case StrengthStrong:
		return "strong"
	default:
		return "normal"
	}
}

// SymbolInfo is the current definition of a name. Records are never mutated once published.
type SymbolInfo struct {
	Name     string
	Addr     uintptr
	Owner    *Object // nil for symbols of the host process
	Strength Strength
}

func (s *SymbolInfo) ownerName() string {
	if s.Owner == nil {
		return "<host>"
	}
	return s.Owner.Name()
}

// SymbolRef is a name an object registered and the address it gave it.
type SymbolRef struct {
	Name     string
	Addr     uintptr
	Strength Strength
}

// symbolTable maps names to records. Readers never lock; writers are serialized by Linker.mu.
type symbolTable struct {
	m *xsync.MapOf[string, *SymbolInfo]
}

func newSymbolTable() symbolTable {
	return symbolTable{m: xsync.NewMapOf[string, *SymbolInfo]()}
}

func (t symbolTable) lookup(name string) (*SymbolInfo, bool) {
	return t.m.Load(name)
}

// insert applies the strength rules. installed tells whether rec became the current record and
// prev is the record it displaced, if any.
func (t symbolTable) insert(rec *SymbolInfo) (installed bool, prev *SymbolInfo, err error) {
	t.m.Compute(rec.Name, func(old *SymbolInfo, loaded bool) (*SymbolInfo, bool) {
		if !loaded {
			installed = true
			return rec, false
		}
		switch {
		case rec.Strength == StrengthStrong && old.Strength == StrengthStrong,
			rec.Strength == StrengthNormal && old.Strength == StrengthNormal:
			err = errors.Wrapf(ErrDuplicateSymbol, "%q defined by %s and %s", rec.Name, old.ownerName(), rec.ownerName())
		case rec.Strength == StrengthStrong,
			rec.Strength == StrengthNormal && old.Strength == StrengthWeak:
			installed, prev = true, old
			return rec, false
		}
		// weak never replaces anything, normal never replaces strong
		return old, false
	})
	return
}

// remove drops name if owner still holds it, putting restore back when not nil.
func (t symbolTable) remove(name string, owner *Object, restore *SymbolInfo) (removed bool) {
	t.m.Compute(name, func(old *SymbolInfo, loaded bool) (*SymbolInfo, bool) {
		if !loaded || old.Owner != owner {
			return old, !loaded
		}
		removed = true
		if restore != nil {
			return restore, false
		}
		return old, true
	})
	return
}

func (t symbolTable) size() int {
	return t.m.Size()
}

// names of every current record.
func (t symbolTable) names() []string {
	m := make(map[string]struct{}, t.m.Size())
	t.m.Range(func(key string, _ *SymbolInfo) bool {
		m[key] = struct{}{}
		return true
	})
	return fn.MapKeys(m)
}

// Define installs a host symbol, owned by no object.
func (l *Linker) Define(name string, addr uintptr, strength Strength) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.define(name, addr, strength)
}

func (l *Linker) define(name string, addr uintptr, strength Strength) error {
	rec := &SymbolInfo{Name: name, Addr: addr, Strength: strength}
	installed, _, err := l.symbols.insert(rec)
	if err != nil {
		return err
	}
	if cur, ok := l.hosts[name]; !ok || installed || strength.rank() > cur.Strength.rank() {
		l.hosts[name] = rec
	}
	if installed {
		l.metrics.Symbols.Inc()
	}
	return nil
}

// Undefine removes a host symbol, also when an object currently displaces it. Symbols owned by
// objects leave with their object.
func (l *Linker) Undefine(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hosts, name)
	if l.symbols.remove(name, nil, nil) {
		l.metrics.Symbols.Dec()
		return true
	}
	return false
}

// Lookup resolves name to an address. With a requester, the owner of the symbol becomes a
// dependency of the requester. Lookup does not take the load lock.
func (l *Linker) Lookup(name string, requester *Object) (uintptr, error) {
	if rec, ok := l.symbols.lookup(name); ok {
		if requester != nil && rec.Owner != nil {
			requester.addDependency(rec.Owner)
		}
		return rec.Addr, nil
	}
	if addr, owner, ok := l.lookupDynamic(name); ok {
		if requester != nil {
			requester.addDependency(owner)
		}
		return addr, nil
	}
	return 0, errors.Wrapf(ErrMissingSymbol, "%q", name)
}

// LookupInfo returns the current record of name.
func (l *Linker) LookupInfo(name string) (*SymbolInfo, bool) {
	return l.symbols.lookup(name)
}

// Symbols lists every name in the global table.
func (l *Linker) Symbols() []string {
	return l.symbols.names()
}

// insertSymbols publishes the definitions of o.
func (l *Linker) insertSymbols(o *Object, specs []SymbolSpec) error {
	for _, s := range specs {
		addr, err := o.symbolAddr(s)
		if err != nil {
			return err
		}
		installed, prev, err := l.symbols.insert(&SymbolInfo{Name: s.Name, Addr: addr, Owner: o, Strength: s.Strength})
		if err != nil {
			return err
		}
		o.symbols = append(o.symbols, SymbolRef{Name: s.Name, Addr: addr, Strength: s.Strength})
		if !installed {
			continue
		}
		if prev != nil {
			if o.displaced == nil {
				o.displaced = make(map[string]*SymbolInfo)
			}
			o.displaced[s.Name] = prev
		} else {
			l.metrics.Symbols.Inc()
		}
	}
	return nil
}

// removeSymbols strips every name o still owns, handing each to the definition it displaced
// or, when that one is gone, to the strongest definition left.
func (l *Linker) removeSymbols(o *Object) {
	for _, s := range o.symbols {
		if rec, ok := l.symbols.lookup(s.Name); !ok || rec.Owner != o {
			continue
		}
		if l.symbols.remove(s.Name, o, l.successor(s.Name, o)) {
			if _, ok := l.symbols.lookup(s.Name); !ok {
				l.metrics.Symbols.Dec()
			}
		}
	}
	o.displaced = nil
}

// successor picks the record that takes over name once o leaves, nil when none is left.
func (l *Linker) successor(name string, o *Object) *SymbolInfo {
	if prev := o.displaced[name]; prev != nil {
		if prev.Owner == nil && l.hosts[name] == prev || prev.Owner != nil && prev.Owner.Status().Visible() {
			return prev
		}
	}
	best := l.hosts[name]
	for _, id := range l.all {
		x := l.objects[id]
		if x == o || !x.Status().Visible() {
			continue
		}
		for _, ref := range x.symbols {
			if ref.Name == name && (best == nil || ref.Strength.rank() > best.Strength.rank()) {
				best = &SymbolInfo{Name: name, Addr: ref.Addr, Owner: x, Strength: ref.Strength}
			}
		}
	}
	return best
}

func (o *Object) symbolAddr(s SymbolSpec) (uintptr, error) {
	if s.Section < 0 {
		return uintptr(s.Value), nil
	}
	if s.Section >= len(o.sections) {
		return 0, fmt.Errorf("symbol %q refers to section %d of %d", s.Name, s.Section, len(o.sections))
	}
	sec := &o.sections[s.Section]
	if sec.Start == 0 {
		return 0, fmt.Errorf("symbol %q refers to unallocated section %q", s.Name, sec.Name)
	}
	return sec.Start + uintptr(s.Value), nil
}
