package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTel is a Recorder backed by the OpenTelemetry metrics API: a duration
// histogram and an operation counter, both named by the `name` argument
// passed at the call site and tagged with arbitrary attributes. cmd/provenance
// owns the MeterProvider (and its exporter); this type only uses it.
type OTel struct {
	meter metric.Meter

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
}

// NewOTel builds an OTel recorder against the given meter.
func NewOTel(meter metric.Meter) *OTel {
	return &OTel{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
	}
}

func (o *OTel) histogram(name string) metric.Float64Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()
	if h, ok := o.histograms[name]; ok {
		return h
	}
	h, _ := o.meter.Float64Histogram(name + "_seconds")
	o.histograms[name] = h
	return h
}

func (o *OTel) counter(name string) metric.Int64Counter {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.counters[name]; ok {
		return c
	}
	c, _ := o.meter.Int64Counter(name + "_total")
	o.counters[name] = c
	return c
}

func attrsFromTags(tags map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(tags))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

// Duration implements Recorder.
func (o *OTel) Duration(name string, d time.Duration, tags map[string]string) {
	o.histogram(name).Record(context.Background(), d.Seconds(), metric.WithAttributes(attrsFromTags(tags)...))
}

// Increment implements Recorder.
func (o *OTel) Increment(name string, tags map[string]string) {
	o.counter(name).Add(context.Background(), 1, metric.WithAttributes(attrsFromTags(tags)...))
}

var _ Recorder = (*OTel)(nil)
