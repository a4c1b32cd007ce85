//go:build !((darwin || linux) && (amd64 || arm64))

package linker

// LoadDynamic is not available without a supported host dynamic loader.
func (l *Linker) LoadDynamic(path string) (*Object, error) {
	return nil, &LoadError{Object: path, Stage: StageValidate, Err: ErrUnsupported}
}

func (l *Linker) lookupDynamic(string) (uintptr, *Object, bool) {
	return 0, nil, false
}

func (l *Linker) unlinkDynamic(*Object) {}

func (l *Linker) dlclose(*Object) error {
	return nil
}

var callFn func(fn uintptr)
