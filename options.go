package uniquestore

type options struct {
	logger              *Logger
	metrics             MetricsCollector
	compactionThreshold float64
	entriesPerBuffer    uint32
	compressMin         int
}

func defaultOptions() options {
	return options{
		logger:              NoopLogger(),
		metrics:             NoopMetricsCollector{},
		compactionThreshold: 0.3,
	}
}

// Option configures Store construction.
type Option func(*options)

// WithLogger sets the logger. If nil is passed, logging stays disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector sets the metrics collector. If nil is passed, metrics
// stay disabled.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithCompactionThreshold sets the dead-entry ratio above which a value
// buffer becomes a compaction candidate. The default is 0.3.
func WithCompactionThreshold(ratio float64) Option {
	return func(o *options) {
		if ratio > 0 && ratio <= 1 {
			o.compactionThreshold = ratio
		}
	}
}

// WithEntriesPerBuffer sets the entry capacity of each value buffer.
// Smaller buffers compact at a finer grain at the cost of more buffer
// bookkeeping.
func WithEntriesPerBuffer(n uint32) Option {
	return func(o *options) {
		o.entriesPerBuffer = n
	}
}

// WithCompression enables transparent in-memory compression for values of at
// least minSize bytes.
func WithCompression(minSize int) Option {
	return func(o *options) {
		o.compressMin = minSize
	}
}
