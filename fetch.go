package linker

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
)

// Sym holds a resolved code address in the shape of a Go func value, see As.
type Sym unsafe.Pointer

// Fetch resolves name into a Sym.
func (l *Linker) Fetch(name string) (Sym, bool) {
	addr, err := l.Lookup(name, nil)
	if err != nil {
		return nil, false
	}
	return symOf(addr), true
}

// MustFetch resolves name into a Sym, panics with ErrMissingSymbol.
func (l *Linker) MustFetch(name string) Sym {
	addr, err := l.Lookup(name, nil)
	if err != nil {
		panic(err)
	}
	return symOf(addr)
}

func symOf(addr uintptr) Sym {
	p := new(uintptr)
	*p = addr
	return Sym(unsafe.Pointer(p))
}

// As convert fetched Sym to contract type, which must be a func type matching the code.
func As[T any](ptr Sym) (x T) {
	px := (*T)(unsafe.Pointer(&ptr))
	x = *px
	return
}

// Use create a function to fetch and use symbol on the fly. Panics while fetching are handed
// to the callback as errors.
func Use[T any](l *Linker, sym string) func(func(t T, err error)) {
	return func(f func(t T, err error)) {
		var x T
		defer func() {
			switch y := recover().(type) {
			case nil:
				f(x, nil)
			case error:
				l.debug("use symbol failed", "symbol", sym, "err", y)
				f(x, y)
			default:
				f(x, errors.New(fmt.Sprint(y)))
			}
		}()
		x = As[T](l.MustFetch(sym))
	}
}
