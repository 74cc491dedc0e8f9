// Package instrument measures wall-clock time and peak heap use around a
// single synchronous call. The measured code knows nothing about it.
package instrument

import (
	"fmt"
	"runtime/metrics"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultSampleInterval is how often heap use is sampled while fn runs.
const DefaultSampleInterval = 5 * time.Millisecond

const heapMetric = "/memory/classes/heap/objects:bytes"

// Measurement is the outcome of one measured call.
type Measurement struct {
	Elapsed       time.Duration
	PeakHeapBytes uint64
}

// Measure runs fn, sampling live heap bytes every DefaultSampleInterval.
func Measure(fn func() error) (Measurement, error) {
	return MeasureEvery(DefaultSampleInterval, fn)
}

// MeasureEvery is Measure with an explicit sampling interval.
func MeasureEvery(interval time.Duration, fn func() error) (Measurement, error) {
	sampler := newHeapSampler()
	sampler.sample()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sampler.sample()
			case <-stop:
				return
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(stop)
	wg.Wait()
	sampler.sample()

	return Measurement{Elapsed: elapsed, PeakHeapBytes: sampler.peak}, err
}

// heapSampler is only touched by one goroutine at a time: the ticker
// goroutine while fn runs, the caller before and after.
type heapSampler struct {
	samples []metrics.Sample
	peak    uint64
}

func newHeapSampler() *heapSampler {
	return &heapSampler{samples: []metrics.Sample{{Name: heapMetric}}}
}

func (h *heapSampler) sample() {
	metrics.Read(h.samples)
	if h.samples[0].Value.Kind() != metrics.KindUint64 {
		return
	}
	if v := h.samples[0].Value.Uint64(); v > h.peak {
		h.peak = v
	}
}

// Summary renders a one-line performance report for a run over inputBytes.
func Summary(inputBytes int64, m Measurement) string {
	secs := m.Elapsed.Seconds()
	throughput := "n/a"
	if secs > 0 {
		throughput = humanize.IBytes(uint64(float64(inputBytes)/secs)) + "/s"
	}
	return fmt.Sprintf("Processed %s in %.2fs, Peak Memory: %s, Throughput: %s",
		humanize.IBytes(uint64(inputBytes)), secs, humanize.IBytes(m.PeakHeapBytes), throughput)
}
