package linker

import (
	"github.com/hashicorp/go-multierror"
)

// LoadFile reads path and loads it.
func (l *Linker) LoadFile(path string) (*Object, error) {
	l.mu.Lock()
	o := l.find(path, "")
	l.mu.Unlock()
	if o != nil {
		return o, nil
	}
	img, err := ReadImage(path)
	if err != nil {
		lerr := &LoadError{Object: path, Stage: StageValidate, Err: err}
		l.metrics.LoadFailures.WithLabelValues(StageValidate.String()).Inc()
		l.report("load failed", lerr, "object", path)
		return nil, lerr
	}
	return l.Load(img)
}

// Load links img into the process and returns the ready object.
//
// The linker takes ownership of img. Loading a path and member that is already loaded returns
// the existing object. On failure nothing of the object stays visible and the error always
// matches ErrLoadFailed.
func (l *Linker) Load(img *Image) (*Object, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, &LoadError{Object: img.Path, Stage: StageValidate, Err: ErrClosed}
	}
	if o := l.find(img.Path, img.Member); o != nil {
		if o.image != img {
			l.Discard(img)
		}
		l.debug("object already loaded", "object", o.Name())
		return o, nil
	}
	o := l.newObject(TypeStatic, img)
	stage, err := l.load(o)
	if err != nil {
		if rerr := l.rollback(o); rerr != nil {
			err = multierror.Append(err, rerr)
		}
		lerr := &LoadError{Object: o.Name(), Stage: stage, Err: err}
		l.metrics.LoadFailures.WithLabelValues(stage.String()).Inc()
		l.report("load failed", lerr, "object", o.Name(), "stage", stage)
		return nil, lerr
	}
	l.loaded = append(l.loaded, o.id)
	l.metrics.ObjectsLoaded.Inc()
	l.debug("object loaded", "object", o.Name(), "sections", len(o.sections), "segments", len(o.segments), "symbols", len(o.symbols))
	return o, nil
}

// load runs the stages of a load in order, returning the one that failed.
func (l *Linker) load(o *Object) (Stage, error) {
	f, err := l.format(o)
	if err != nil {
		return StageValidate, err
	}
	info, err := f.Parse(o)
	if err != nil {
		return StageSections, err
	}
	o.info = info
	if err = l.buildSegments(o, info.Sections(), info.ExtraSlots()); err != nil {
		return StageSegments, err
	}
	o.setStatus(StatusSectioned)
	if err = l.insertSymbols(o, info.Symbols()); err != nil {
		return StageSymbols, err
	}
	o.setStatus(StatusLoaded)
	o.prepareProddables()
	if err = info.Relocate(o); err != nil {
		return StageRelocate, err
	}
	o.setStatus(StatusResolved)
	if err = l.protectSegments(o); err != nil {
		return StageProtect, err
	}
	o.freeProddables()
	o.setStatus(StatusReady)
	if l.cfg.RunInitializers {
		if err = l.runInitializers(o); err != nil {
			return StageInit, err
		}
	}
	return StageInit, nil
}

// rollback undoes a partial load and forgets the object.
func (l *Linker) rollback(o *Object) error {
	l.removeSymbols(o)
	o.freeProddables()
	return l.release(o)
}

// release frees what the object holds and drops it from every list.
func (l *Linker) release(o *Object) error {
	var result error
	if o.typ == TypeDynamic {
		if err := l.dlclose(o); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := l.freeSegments(o); err != nil {
		result = multierror.Append(result, err)
	}
	if err := o.image.Free(); err != nil {
		result = multierror.Append(result, err)
	}
	l.loaded = removeID(l.loaded, o.id)
	l.all = removeID(l.all, o.id)
	delete(l.objects, o.id)
	o.setStatus(StatusFreed)
	return result
}
