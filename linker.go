package linker

import (
	"os"
	"sync"

	"github.com/ZenLiuCN/linker/mem"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Linker loads object code into the running process and links it against the host and
// against previously loaded objects.
type Linker struct {
	cfg     Config
	logger  log.Logger
	msg     *Messages
	alloc   mem.Allocator
	arch    *Arch
	formats []Format
	metrics *Metrics
	reg     prometheus.Registerer

	symbols  symbolTable
	hosts    map[string]*SymbolInfo // host definitions, installed or displaced
	resolved *lru.Cache[uintptr, Resolved]

	// mu serializes load, unload, free and sweeps.
	mu      sync.Mutex
	closed  bool
	nextID  ObjectID
	objects map[ObjectID]*Object
	all     []ObjectID // every object not yet freed, oldest first
	loaded  []ObjectID // ready objects, oldest first
	marking bool

	// dlMu serializes the host dynamic loader.
	dlMu    sync.Mutex
	dynamic []*Object
}

// Option configures a Linker.
type Option func(*Linker)

// WithLogger routes the default diagnostic sinks to logger.
func WithLogger(logger log.Logger) Option {
	return func(l *Linker) { l.logger = logger }
}

// WithMessages replaces the diagnostic sinks. Nil sinks keep their default.
func WithMessages(m Messages) Option {
	return func(l *Linker) {
		l.msg = &Messages{Fatal: m.Fatal, Error: m.Error, SysError: m.SysError, Debug: m.Debug}
	}
}

// WithAllocator replaces the page allocator.
func WithAllocator(a mem.Allocator) Option {
	return func(l *Linker) { l.alloc = a }
}

// WithRegisterer registers the linker metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(l *Linker) { l.reg = reg }
}

// WithFormats registers object formats, tried in order.
func WithFormats(formats ...Format) Option {
	return func(l *Linker) { l.formats = append(l.formats, formats...) }
}

// New creates a Linker.
func New(cfg Config, opts ...Option) (*Linker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	arch, err := archFor(cfg.Arch)
	if err != nil {
		return nil, err
	}
	l := &Linker{
		cfg:     cfg,
		arch:    arch,
		symbols: newSymbolTable(),
		hosts:   make(map[string]*SymbolInfo),
		objects: make(map[ObjectID]*Object),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	}
	if cfg.Debug {
		l.logger = level.NewFilter(l.logger, level.AllowDebug())
	} else {
		l.logger = level.NewFilter(l.logger, level.AllowInfo())
	}
	l.logger = log.With(l.logger, "component", "linker")
	def := NewMessages(l.logger)
	if l.msg == nil {
		l.msg = def
	} else {
		if l.msg.Fatal == nil {
			l.msg.Fatal = def.Fatal
		}
		if l.msg.Error == nil {
			l.msg.Error = def.Error
		}
		if l.msg.SysError == nil {
			l.msg.SysError = def.SysError
		}
		if l.msg.Debug == nil {
			l.msg.Debug = def.Debug
		}
	}
	if l.alloc == nil {
		l.alloc = mem.Default(cfg.PageSize)
	}
	l.metrics = NewMetrics(l.reg)
	if l.resolved, err = lru.New[uintptr, Resolved](cfg.ResolveCacheSize); err != nil {
		return nil, err
	}
	return l, nil
}

// Config the linker was created with.
func (l *Linker) Config() Config {
	return l.cfg
}

// Metrics of the linker.
func (l *Linker) Metrics() *Metrics {
	return l.metrics
}

// Status of the newest object loaded from path and member, StatusNotLoaded when unknown.
func (l *Linker) Status(path, member string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.all) - 1; i >= 0; i-- {
		if o := l.objects[l.all[i]]; o.image.Path == path && o.image.Member == member {
			return o.Status()
		}
	}
	return StatusNotLoaded
}

// find returns the newest visible object for path and member.
func (l *Linker) find(path, member string) *Object {
	for i := len(l.all) - 1; i >= 0; i-- {
		o := l.objects[l.all[i]]
		if o.image.Path == path && o.image.Member == member && o.Status().Visible() {
			return o
		}
	}
	return nil
}

// Objects lists every object not yet freed, oldest first.
func (l *Linker) Objects() []*Object {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list(l.all)
}

// LoadedObjects lists the ready objects, oldest first.
func (l *Linker) LoadedObjects() []*Object {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list(l.loaded)
}

func (l *Linker) list(ids []ObjectID) []*Object {
	v := make([]*Object, 0, len(ids))
	for _, id := range ids {
		v = append(v, l.objects[id])
	}
	return v
}

// Object returns the object with id.
func (l *Linker) Object(id ObjectID) (*Object, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.objects[id]
	return o, ok
}

func removeID(ids []ObjectID, id ObjectID) []ObjectID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Close unloads and frees every object, newest first.
func (l *Linker) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	var result error
	for i := len(l.loaded) - 1; i >= 0; i-- {
		if err := l.unload(l.objects[l.loaded[i]]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	for len(l.all) > 0 {
		o := l.objects[l.all[len(l.all)-1]]
		if err := l.release(o); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
