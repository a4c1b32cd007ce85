package linker

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/pkujhd/goloader"
)

// RegisterHostSymbols defines the symbols of the running executable. Names already in the
// table are left alone. It returns how many names were added.
func (l *Linker) RegisterHostSymbols() (int, error) {
	syms := make(map[string]uintptr)
	if err := goloader.RegSymbol(syms); err != nil {
		return 0, errors.Wrap(err, "read host symbols")
	}
	return l.defineAll(syms)
}

// RegisterSharedObjectSymbols defines the symbols of a shared object already mapped into the
// process, like a Go plugin.
func (l *Linker) RegisterSharedObjectSymbols(path string) (int, error) {
	syms := make(map[string]uintptr)
	if err := goloader.RegSymbolWithSo(syms, path); err != nil {
		return 0, errors.Wrapf(err, "read symbols of %s", path)
	}
	return l.defineAll(syms)
}

func (l *Linker) defineAll(syms map[string]uintptr) (n int, result error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, addr := range syms {
		if addr == 0 {
			continue
		}
		if _, ok := l.symbols.lookup(name); ok {
			continue
		}
		if err := l.define(name, addr, StrengthNormal); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		n++
	}
	l.debug("host symbols defined", "count", n)
	return
}
