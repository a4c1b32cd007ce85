//go:build (darwin || linux) && (amd64 || arm64)

package linker

import (
	"os"

	"github.com/ebitengine/purego"
)

// LoadDynamic opens a shared object with the host dynamic loader. Lookups that miss the
// symbol table fall back to the opened objects, newest last.
func (l *Linker) LoadDynamic(path string) (*Object, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, &LoadError{Object: path, Stage: StageValidate, Err: ErrClosed}
	}
	if o := l.find(path, ""); o != nil {
		return o, nil
	}
	l.dlMu.Lock()
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	l.dlMu.Unlock()
	if err != nil {
		lerr := &LoadError{Object: path, Stage: StageValidate, Err: os.NewSyscallError("dlopen", err)}
		l.metrics.LoadFailures.WithLabelValues(StageValidate.String()).Inc()
		l.report("load failed", lerr, "object", path)
		return nil, lerr
	}
	o := l.newObject(TypeDynamic, &Image{Path: path})
	o.handle = h
	l.dlMu.Lock()
	l.dynamic = append(l.dynamic, o)
	l.dlMu.Unlock()
	o.setStatus(StatusReady)
	l.loaded = append(l.loaded, o.id)
	l.metrics.ObjectsLoaded.Inc()
	return o, nil
}

func (l *Linker) lookupDynamic(name string) (uintptr, *Object, bool) {
	l.dlMu.Lock()
	defer l.dlMu.Unlock()
	for _, o := range l.dynamic {
		if addr, err := purego.Dlsym(o.handle, name); err == nil && addr != 0 {
			return addr, o, true
		}
	}
	return 0, nil, false
}

func (l *Linker) unlinkDynamic(o *Object) {
	l.dlMu.Lock()
	defer l.dlMu.Unlock()
	for i, d := range l.dynamic {
		if d == o {
			l.dynamic = append(l.dynamic[:i], l.dynamic[i+1:]...)
			return
		}
	}
}

func (l *Linker) dlclose(o *Object) error {
	if o.handle == 0 {
		return nil
	}
	l.dlMu.Lock()
	defer l.dlMu.Unlock()
	err := purego.Dlclose(o.handle)
	o.handle = 0
	if err != nil {
		return os.NewSyscallError("dlclose", err)
	}
	return nil
}

// callFn calls a C function taking no argument.
var callFn = func(fn uintptr) {
	purego.SyscallN(fn)
}
