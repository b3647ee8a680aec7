package application

import "go.uber.org/zap"

type Option func(*options)

type options struct {
	log     *zap.Logger
	mapKeys bool
	metrics *Metrics
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMapKeys makes the walk follow map keys as well as values.
func WithMapKeys(on bool) Option {
	return func(o *options) { o.mapKeys = on }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func newOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
