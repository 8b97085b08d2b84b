/*
 * Copyright (c) 2024, rez contributors. All rights reserved.
 */

// Package metrics is the ambient observability stack: Prometheus
// gauges/counters for session, script, and physics load, plus periodic
// disk iostat sampling, all served off one /metrics endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/lufia/iostat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rezsim/rez/cmn/nlog"
)

// Registry owns every gauge/counter this region exports, mirroring the
// teacher's own pattern of one process-wide metrics registry rather than
// the global default registry (cleaner for tests: each region can build
// its own Registry rather than sharing prometheus.DefaultRegisterer).
type Registry struct {
	reg *prometheus.Registry

	sessionCount  prometheus.GaugeFunc
	scriptCount   prometheus.GaugeFunc
	groundedCount prometheus.GaugeFunc

	physicsTickSeconds prometheus.Histogram
	diskReadBytes      *prometheus.CounterVec
	diskWriteBytes     *prometheus.CounterVec

	stopIostat chan struct{}
}

// Counters are the callbacks a running region host supplies for the
// gauge metrics; each is read lock-free at scrape time, so callers
// should make these cheap (an atomic load or a mutex-guarded len()).
type Counters struct {
	SessionCount  func() float64
	ScriptCount   func() float64
	GroundedCount func() float64
}

// NewRegistry builds a Registry and registers every collector. counters
// supplies the gauge read functions; any left nil reports a constant 0.
func NewRegistry(counters Counters) *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	zero := func() float64 { return 0 }
	if counters.SessionCount == nil {
		counters.SessionCount = zero
	}
	if counters.ScriptCount == nil {
		counters.ScriptCount = zero
	}
	if counters.GroundedCount == nil {
		counters.GroundedCount = zero
	}

	r.sessionCount = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rez_sessions_active",
		Help: "Number of avatar sessions currently attached to this region.",
	}, counters.SessionCount)
	r.scriptCount = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rez_scripts_loaded",
		Help: "Number of scripts currently loaded in the script host.",
	}, counters.ScriptCount)
	r.groundedCount = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "rez_avatars_grounded",
		Help: "Number of avatars the physics bridge currently reports as grounded.",
	}, counters.GroundedCount)

	r.physicsTickSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rez_physics_tick_seconds",
		Help:    "Wall-clock duration of one physics bridge tick.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	r.diskReadBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rez_disk_read_bytes_total",
		Help: "Cumulative bytes read per disk device, sampled via iostat.",
	}, []string{"device"})
	r.diskWriteBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rez_disk_write_bytes_total",
		Help: "Cumulative bytes written per disk device, sampled via iostat.",
	}, []string{"device"})

	r.reg.MustRegister(
		r.sessionCount, r.scriptCount, r.groundedCount,
		r.physicsTickSeconds, r.diskReadBytes, r.diskWriteBytes,
	)
	return r
}

// ObservePhysicsTick records one physics bridge tick's wall-clock cost.
func (r *Registry) ObservePhysicsTick(d time.Duration) {
	r.physicsTickSeconds.Observe(d.Seconds())
}

// Handler returns the http.Handler this Registry's metrics are served
// from; cmd/regiond mounts it at "/metrics" on a listener of its own,
// apart from httpd's capability and federation surfaces.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// StartIostatSampling begins a background goroutine that samples disk
// throughput every interval via lufia/iostat and republishes the deltas
// as counter increments, until Stop is called.
func (r *Registry) StartIostatSampling(interval time.Duration) {
	r.stopIostat = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev := map[string]iostat.DriveStats{}
		for {
			select {
			case <-r.stopIostat:
				return
			case <-ticker.C:
				stats, err := iostat.ReadDriveStats()
				if err != nil {
					nlog.Warningf("metrics: iostat sample failed: %v", err)
					continue
				}
				for _, s := range stats {
					if p, ok := prev[s.Name]; ok {
						if d := s.BytesRead - p.BytesRead; d > 0 {
							r.diskReadBytes.WithLabelValues(s.Name).Add(float64(d))
						}
						if d := s.BytesWritten - p.BytesWritten; d > 0 {
							r.diskWriteBytes.WithLabelValues(s.Name).Add(float64(d))
						}
					}
					prev[s.Name] = s
				}
			}
		}
	}()
}

// Stop ends the iostat sampling goroutine, if running.
func (r *Registry) Stop() {
	if r.stopIostat != nil {
		close(r.stopIostat)
		r.stopIostat = nil
	}
}
