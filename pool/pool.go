// Package pool keeps a set of pinned objects loaded and collects the rest.
package pool

import (
	"slices"
	"sync"

	"github.com/ZenLiuCN/linker"
	"github.com/pkg/errors"
)

type Pool struct {
	*linker.Linker
	Modules map[string][]*linker.Object // pinned objects by path, one per member for archives
	Loaded  []string                    // pinned paths, oldest first
	sync.RWMutex
}

var (
	ErrAlreadyLoad = errors.New("module already loaded")
	ErrNotLoad     = errors.New("module not loaded")
	ErrCorrupted   = errors.New("recording corrupted")
)

// NewPool create new pool
func NewPool(cfg linker.Config, opts ...linker.Option) (p *Pool, err error) {
	p = new(Pool)
	p.Modules = make(map[string][]*linker.Object)
	p.Linker, err = linker.New(cfg, opts...)
	return
}

func (p *Pool) RegisterSo(path string) (int, error) {
	return p.RegisterSharedObjectSymbols(path)
}

func (p *Pool) RegisterHost() (int, error) {
	return p.RegisterHostSymbols()
}

// LoadFile loads an object or every member of an archive and pins it.
func (p *Pool) LoadFile(file string) (err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Modules[file]; ok {
		return ErrAlreadyLoad
	}
	return p.load(file)
}

// LoadImage loads img and pins it under its path.
func (p *Pool) LoadImage(img *linker.Image) (err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Modules[img.Path]; ok {
		p.Discard(img)
		return ErrAlreadyLoad
	}
	o, err := p.Load(img)
	if err != nil {
		return
	}
	p.pin(img.Path, o)
	return
}

func (p *Pool) load(file string) error {
	img, err := linker.ReadImage(file)
	if err != nil {
		return err
	}
	if !linker.IsArchive(img.Data) {
		o, err := p.Load(img)
		if err != nil {
			return err
		}
		p.pin(file, o)
		return nil
	}
	p.Discard(img)
	objects, err := p.LoadArchive(file)
	if len(objects) > 0 {
		p.pin(file, objects...)
	}
	return err
}

func (p *Pool) pin(name string, objects ...*linker.Object) {
	p.Modules[name] = objects
	p.Loaded = append(p.Loaded, name)
}

func (p *Pool) unpin(name string) {
	delete(p.Modules, name)
	p.Loaded = slices.DeleteFunc(p.Loaded, func(s string) bool { return s == name })
}

// Release unpins file and collects what nothing pinned needs anymore.
func (p *Pool) Release(file string) (err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Modules[file]; !ok {
		return ErrNotLoad
	}
	p.unpin(file)
	_, _, err = p.collect()
	return
}

// ReloadFile unpins file and everything pinned after it, collects, then loads file again.
func (p *Pool) ReloadFile(file string) (err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Modules[file]; !ok {
		return ErrNotLoad
	}
	i := slices.Index(p.Loaded, file)
	if i < 0 {
		return ErrCorrupted
	}
	for _, name := range slices.Clone(p.Loaded[i:]) {
		p.unpin(name)
	}
	if _, _, err = p.collect(); err != nil {
		return
	}
	return p.load(file)
}

// Require fetch symbol defined by the pinned module file
func (p *Pool) Require(file, symbol string) (linker.Sym, error) {
	p.RLock()
	defer p.RUnlock()
	m, ok := p.Modules[file]
	if !ok {
		return nil, errors.Wrap(ErrNotLoad, file)
	}
	info, ok := p.LookupInfo(symbol)
	if !ok || !slices.Contains(m, info.Owner) {
		return nil, errors.Wrapf(linker.ErrMissingSymbol, "%q in %s", symbol, file)
	}
	return p.MustFetch(symbol), nil
}

// Collect unloads and frees every object no pinned module reaches.
func (p *Pool) Collect() (unloaded, freed int, err error) {
	p.Lock()
	defer p.Unlock()
	return p.collect()
}

func (p *Pool) collect() (int, int, error) {
	roots := make([]*linker.Object, 0, len(p.Modules))
	for _, name := range p.Loaded {
		roots = append(roots, p.Modules[name]...)
	}
	unloaded, freed, err := p.Linker.Collect(roots...)
	return len(unloaded), len(freed), err
}

// Pinned names the module holding o.
func (p *Pool) Pinned(o *linker.Object) (string, bool) {
	p.RLock()
	defer p.RUnlock()
	for name, m := range p.Modules {
		if slices.Contains(m, o) {
			return name, true
		}
	}
	return "", false
}
