// Package metrics exports read budget consumption as Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rawbytedev/capread/pkg/arena"
)

// Config names the counters and picks where they are registered.
type Config struct {
	Namespace string
	Subsystem string
	Registry  prometheus.Registerer
}

type Option func(*Config)

// WithNamespace overrides the "capread" namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithSubsystem overrides the "reader" subsystem, for example to keep copy
// budgets apart from inspection budgets.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) { c.Subsystem = subsystem }
}

// WithRegistry registers the counters with registry instead of the default
// registerer.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

// Collector holds the counters shared by every instrumented limiter.
type Collector struct {
	bytesCharged  prometheus.Counter
	levelsCharged prometheus.Counter
	refusals      *prometheus.CounterVec
}

// NewCollector registers the counters. Registering twice against the same
// registry panics.
func NewCollector(opts ...Option) *Collector {
	config := Config{Namespace: "capread", Subsystem: "reader", Registry: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		bytesCharged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "bytes_charged_total",
			Help:      "Bytes charged against read budgets",
		}),
		levelsCharged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "levels_charged_total",
			Help:      "Pointer indirections admitted by depth budgets",
		}),
		refusals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "refusals_total",
			Help:      "Charges refused because a budget was exhausted",
		}, []string{"budget"}),
	}
}

// Instrument wraps limiter so its charges are counted.
func (c *Collector) Instrument(limiter arena.Limiter) *Instrumented {
	if limiter == nil {
		limiter = arena.Unlimited{}
	}
	return &Instrumented{Limiter: limiter, c: c}
}

// Instrumented is a Limiter that forwards to another one and records what
// it granted and refused.
type Instrumented struct {
	arena.Limiter
	c *Collector
}

func (i *Instrumented) ChargeBytes(n int) error {
	if err := i.Limiter.ChargeBytes(n); err != nil {
		i.c.refusals.WithLabelValues("bytes").Inc()
		return err
	}
	i.c.bytesCharged.Add(float64(n))
	return nil
}

func (i *Instrumented) ChargeLevel(level int) error {
	if err := i.Limiter.ChargeLevel(level); err != nil {
		i.c.refusals.WithLabelValues("levels").Inc()
		return err
	}
	i.c.levelsCharged.Inc()
	return nil
}
