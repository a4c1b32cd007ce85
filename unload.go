package linker

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Unload withdraws the symbols of a ready object. Its memory stays until Free.
func (l *Linker) Unload(o *Object) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unload(o)
}

func (l *Linker) unload(o *Object) error {
	if o.Status() != StatusReady {
		return errors.Wrapf(ErrNotLoaded, "%s is %s", o.Name(), o.Status())
	}
	if l.cfg.RunInitializers && o.typ == TypeStatic {
		if err := l.runFinalizers(o); err != nil {
			l.report("finalizers failed", err, "object", o.Name())
		}
	}
	if o.typ == TypeDynamic {
		l.unlinkDynamic(o)
	}
	l.removeSymbols(o)
	o.freeProddables()
	l.loaded = removeID(l.loaded, o.id)
	o.setStatus(StatusUnloaded)
	l.purgeResolved(o)
	l.metrics.ObjectsUnloaded.Inc()
	return nil
}

// Free reclaims the memory of an unloaded object nothing loaded still needs.
func (l *Linker) Free(o *Object) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o.Status() != StatusUnloaded {
		return errors.Wrapf(ErrNotUnloaded, "%s is %s", o.Name(), o.Status())
	}
	if _, ok := l.needed()[o.id]; ok {
		return errors.Wrapf(ErrInUse, "%s", o.Name())
	}
	err := l.release(o)
	l.metrics.ObjectsFreed.Inc()
	return err
}

// needed is the set of objects reachable from the loaded ones, which includes them.
func (l *Linker) needed() map[ObjectID]struct{} {
	seen := make(map[ObjectID]struct{}, len(l.loaded))
	work := l.list(l.loaded)
	for len(work) > 0 {
		o := work[len(work)-1]
		work = work[:len(work)-1]
		if _, ok := seen[o.id]; ok {
			continue
		}
		seen[o.id] = struct{}{}
		work = append(work, o.Dependencies()...)
	}
	return seen
}

// BeginMark clears every mark bit and opens a mark phase.
func (l *Linker) BeginMark() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range l.all {
		l.objects[id].mark.Store(false)
	}
	l.marking = true
}

// MarkReachable marks roots and everything they depend on, to a fixed point.
func (l *Linker) MarkReachable(roots ...*Object) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.marking {
		return ErrNotMarking
	}
	work := append([]*Object(nil), roots...)
	for len(work) > 0 {
		o := work[len(work)-1]
		work = work[:len(work)-1]
		if o.SetMark() {
			work = append(work, o.Dependencies()...)
		}
	}
	return nil
}

// Sweep closes the mark phase and unloads every loaded object left unmarked.
func (l *Linker) Sweep() ([]*Object, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.marking {
		return nil, ErrNotMarking
	}
	l.marking = false
	var (
		swept  []*Object
		result error
	)
	for _, o := range l.list(l.loaded) {
		if o.Marked() {
			continue
		}
		if err := l.unload(o); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		swept = append(swept, o)
	}
	return swept, result
}

// FreeUnloaded reclaims every unloaded object that no loaded object still needs.
func (l *Linker) FreeUnloaded() ([]*Object, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.marking {
		return nil, errors.New("free during a mark phase")
	}
	needed := l.needed()
	var (
		freed  []*Object
		result error
	)
	for _, o := range l.list(l.all) {
		if o.Status() != StatusUnloaded {
			continue
		}
		if _, ok := needed[o.id]; ok {
			continue
		}
		if err := l.release(o); err != nil {
			result = multierror.Append(result, err)
		}
		l.metrics.ObjectsFreed.Inc()
		freed = append(freed, o)
	}
	return freed, result
}

// Collect runs a whole cycle: mark from roots, sweep, then free what became unneeded.
func (l *Linker) Collect(roots ...*Object) (unloaded, freed []*Object, err error) {
	l.BeginMark()
	if err = l.MarkReachable(roots...); err != nil {
		return
	}
	if unloaded, err = l.Sweep(); err != nil {
		return
	}
	freed, err = l.FreeUnloaded()
	return
}
