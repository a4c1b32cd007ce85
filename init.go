package linker

import (
	"github.com/pkg/errors"
)

// initEntries lists the function pointers of every section of kind.
func (o *Object) initEntries(kind SectionKind) []uintptr {
	var v []uintptr
	order := o.linker.arch.ByteOrder
	for i := range o.sections {
		sec := &o.sections[i]
		if sec.Kind != kind || sec.mem == nil {
			continue
		}
		for off := 0; off+8 <= len(sec.mem); off += 8 {
			// 0 and -1 are the terminators of .ctors style tables
			if p := order.Uint64(sec.mem[off:]); p != 0 && p != ^uint64(0) {
				v = append(v, uintptr(p))
			}
		}
	}
	return v
}

// runInitializers calls the static initializers of o in table order.
func (l *Linker) runInitializers(o *Object) error {
	entries := o.initEntries(KindInitArray)
	if len(entries) == 0 {
		return nil
	}
	if callFn == nil {
		return errors.Wrap(ErrUnsupported, "run initializers")
	}
	for _, fn := range entries {
		l.debug("run initializer", "object", o.Name(), "fn", fn)
		callFn(fn)
	}
	return nil
}

// runFinalizers calls the static finalizers of o in reverse table order.
func (l *Linker) runFinalizers(o *Object) error {
	entries := o.initEntries(KindFiniArray)
	if len(entries) == 0 {
		return nil
	}
	if callFn == nil {
		return errors.Wrap(ErrUnsupported, "run finalizers")
	}
	for i := len(entries) - 1; i >= 0; i-- {
		l.debug("run finalizer", "object", o.Name(), "fn", entries[i])
		callFn(entries[i])
	}
	return nil
}
