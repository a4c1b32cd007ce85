package linker

import (
	"fmt"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// ObjectID identifies an object for the lifetime of a Linker.
type ObjectID uint64

// Status of an object. Statuses only move forward.
type Status int32

const (
	StatusNotLoaded Status = iota // discovered, nothing built yet
	StatusSectioned               // sections and segments built
	StatusLoaded                  // symbols extracted and published
	StatusResolved                // relocations applied
	StatusReady                   // protected and running
	StatusUnloaded                // symbols withdrawn, memory still held
	StatusFreed                   // memory reclaimed
)

var statusNames = [...]string{"not-loaded", "sectioned", "loaded", "resolved", "ready", "unloaded", "freed"}

func (s Status) String() string {
	if int(s) >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

// Visible reports whether symbols of an object in this status are in the global table.
func (s Status) Visible() bool {
	return s >= StatusLoaded && s <= StatusReady
}

// ObjectType tells who loaded an object.
type ObjectType int

const (
	TypeStatic  ObjectType = iota // linked by this linker
	TypeDynamic                   // opened by the host dynamic loader
)

func (t ObjectType) String() string {
	if t == TypeDynamic {
		return "dynamic"
	}
	return "static"
}

// Object is one loaded unit, an object file or an archive member.
type Object struct {
	id     ObjectID
	linker *Linker
	status atomic.Int32
	typ    ObjectType
	image  *Image
	info   Info

	sections []Section
	segments []Segment

	symbols   []SymbolRef
	displaced map[string]*SymbolInfo

	proddables []ProddableBlock

	extraSlots int
	extraBase  uintptr
	extras     []SymbolExtra
	extraIndex map[string]int

	deps *xsync.MapOf[ObjectID, *Object]
	mark atomic.Bool

	handle uintptr // dlopen handle of a dynamic object
}

func (l *Linker) newObject(typ ObjectType, img *Image) *Object {
	l.nextID++
	o := &Object{
		id:     l.nextID,
		linker: l,
		typ:    typ,
		image:  img,
		deps:   xsync.NewMapOf[ObjectID, *Object](),
	}
	l.objects[o.id] = o
	l.all = append(l.all, o.id)
	return o
}

func (o *Object) ID() ObjectID        { return o.id }
func (o *Object) Type() ObjectType    { return o.typ }
func (o *Object) Image() *Image       { return o.image }
func (o *Object) Info() Info          { return o.info }
func (o *Object) Path() string        { return o.image.Path }
func (o *Object) Member() string      { return o.image.Member }
func (o *Object) Sections() []Section { return o.sections }
func (o *Object) Segments() []Segment { return o.segments }

// Symbols lists the definitions o registered, installed or not.
func (o *Object) Symbols() []SymbolRef { return o.symbols }

// Status of the object.
func (o *Object) Status() Status {
	return Status(o.status.Load())
}

func (o *Object) setStatus(s Status) {
	o.status.Store(int32(s))
	o.linker.debug("object status", "object", o.Name(), "status", s)
}

// Name is the archive member qualified path, like lib.a(foo.o).
func (o *Object) Name() string {
	if o.image.Member != "" {
		return fmt.Sprintf("%s(%s)", o.image.Path, o.image.Member)
	}
	return o.image.Path
}

func (o *Object) String() string {
	return fmt.Sprintf("%s [%s %s]", o.Name(), o.typ, o.Status())
}

// Section returns the i-th section.
func (o *Object) Section(i int) *Section {
	return &o.sections[i]
}

// Resolve looks name up on behalf of o, recording the dependency.
func (o *Object) Resolve(name string) (uintptr, error) {
	return o.linker.Lookup(name, o)
}

// Arch the object is linked for.
func (o *Object) Arch() *Arch {
	return o.linker.arch
}

func (o *Object) addDependency(dep *Object) {
	if dep != o {
		o.deps.Store(dep.id, dep)
	}
}

// Dependencies lists the objects whose symbols o resolved.
func (o *Object) Dependencies() []*Object {
	v := make([]*Object, 0, o.deps.Size())
	o.deps.Range(func(_ ObjectID, d *Object) bool {
		v = append(v, d)
		return true
	})
	return v
}

// DependsOn reports whether o resolved a symbol owned by d.
func (o *Object) DependsOn(d *Object) bool {
	_, ok := o.deps.Load(d.id)
	return ok
}

// Marked reports the mark bit of the current sweep.
func (o *Object) Marked() bool {
	return o.mark.Load()
}

// SetMark sets the mark bit, reporting whether it was clear.
func (o *Object) SetMark() bool {
	return o.mark.CompareAndSwap(false, true)
}
