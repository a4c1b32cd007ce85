package linker

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ObjectsLoaded   prometheus.Counter
	ObjectsUnloaded prometheus.Counter
	ObjectsFreed    prometheus.Counter
	LoadFailures    *prometheus.CounterVec
	Symbols         prometheus.Gauge
	JumpIslands     prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ObjectsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linker_objects_loaded_total",
			Help: "Total number of objects that reached the ready status",
		}),
		ObjectsUnloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linker_objects_unloaded_total",
			Help: "Total number of objects unloaded",
		}),
		ObjectsFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linker_objects_freed_total",
			Help: "Total number of objects whose memory was reclaimed",
		}),
		LoadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linker_load_failures_total",
			Help: "Total number of failed loads by stage",
		}, []string{"stage"}),
		Symbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "linker_symbols",
			Help: "Number of names in the global symbol table",
		}),
		JumpIslands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linker_jump_islands_total",
			Help: "Total number of jump islands written",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ObjectsLoaded,
			m.ObjectsUnloaded,
			m.ObjectsFreed,
			m.LoadFailures,
			m.Symbols,
			m.JumpIslands,
		)
	}

	return m
}
