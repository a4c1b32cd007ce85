package linker

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

var (
	// ErrLoadFailed is carried by every error returned from a failed load request.
	ErrLoadFailed = errors.New("load failed")
	// ErrUnknownFormat occurs when no registered format recognises an image.
	ErrUnknownFormat = errors.New("unrecognized file format")
	// ErrMissingSymbol occurs when a symbol can't be found.
	ErrMissingSymbol = errors.New("missing symbol")
	// ErrDuplicateSymbol occurs when two definitions of equal strength collide.
	ErrDuplicateSymbol = errors.New("duplicate symbol")
	// ErrUnsupportedRelocation occurs when a format meets a relocation it can't apply.
	ErrUnsupportedRelocation = errors.New("unsupported relocation")
	// ErrRelocationOverflow occurs when a relocated value does not fit its field.
	ErrRelocationOverflow = errors.New("relocation overflow")
	// ErrNotLoaded occurs when unloading an object that is not loaded.
	ErrNotLoaded = errors.New("object not loaded")
	// ErrNotUnloaded occurs when freeing an object that was not unloaded first.
	ErrNotUnloaded = errors.New("object not unloaded")
	// ErrInUse occurs when freeing an object a loaded object still depends on.
	ErrInUse = errors.New("object still in use")
	// ErrNotMarking occurs when sweeping without a mark phase.
	ErrNotMarking = errors.New("sweep without mark phase")
	// ErrUnsupported occurs when the host can't provide a facility, such as dlopen.
	ErrUnsupported = errors.New("not supported on this platform")
	// ErrClosed occurs when using a closed linker.
	ErrClosed = errors.New("linker closed")
)

// Stage names the step of a load request that failed.
type Stage int

const (
	StageValidate Stage = iota
	StageSections
	StageSegments
	StageSymbols
	StageRelocate
	StageProtect
	StageInit
)

var stageNames = [...]string{"validate", "sections", "segments", "symbols", "relocate", "protect", "init"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// LoadError is the outcome of every failed load. errors.Is(err, ErrLoadFailed) always holds.
type LoadError struct {
	Object string
	Stage  Stage
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s failed at %s: %v", e.Object, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoadFailed, e.Err}
}

// FatalError is the panic value of a fatal internal error whose sink returned.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string {
	return "fatal linker error: " + e.Msg
}

// isSystem tells errors reported by the OS apart from user errors.
func isSystem(err error) bool {
	var se *os.SyscallError
	return errors.As(err, &se)
}
