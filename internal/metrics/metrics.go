// Package metrics exposes stream health counters over Prometheus. It
// observes the event bus rather than the workers directly, so the core
// carries no metrics dependency.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/rtsp2web/internal/events"
	"github.com/smazurov/rtsp2web/internal/stream"
)

// Collector registers the stream metrics and keeps them updated from bus
// events.
type Collector struct {
	registry *prometheus.Registry

	framesTotal  *prometheus.CounterVec
	frameBytes   *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	statesTotal  *prometheus.CounterVec
	connectedNow *prometheus.GaugeVec

	unsubs []func()
}

// NewCollector creates the collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		framesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtsp2web_frames_decoded_total",
			Help: "Frames decoded and published to the cache, per stream.",
		}, []string{"stream"}),
		frameBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtsp2web_frame_bytes_total",
			Help: "Encoded frame bytes published to the cache, per stream.",
		}, []string{"stream"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtsp2web_decode_errors_total",
			Help: "Decode attempt failures, per stream and error kind.",
		}, []string{"stream", "kind"}),
		statesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtsp2web_state_transitions_total",
			Help: "Stream state machine transitions, per stream and new state.",
		}, []string{"stream", "state"}),
		connectedNow: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtsp2web_stream_connected",
			Help: "1 while the stream is connected, 0 otherwise.",
		}, []string{"stream"}),
	}

	c.registry.MustRegister(c.framesTotal, c.frameBytes, c.errorsTotal, c.statesTotal, c.connectedNow)
	return c
}

// Observe subscribes the collector to the event bus. Call Close to detach.
func (c *Collector) Observe(bus *events.Bus) {
	c.unsubs = append(c.unsubs,
		bus.Subscribe(func(e events.FrameDecodedEvent) {
			label := strconv.Itoa(e.StreamIndex)
			c.framesTotal.WithLabelValues(label).Inc()
			c.frameBytes.WithLabelValues(label).Add(float64(e.Bytes))
		}),
		bus.Subscribe(func(e events.DecodeErrorEvent) {
			c.errorsTotal.WithLabelValues(strconv.Itoa(e.StreamIndex), e.Kind).Inc()
		}),
		bus.Subscribe(func(e events.StreamStateChangedEvent) {
			label := strconv.Itoa(e.StreamIndex)
			c.statesTotal.WithLabelValues(label, e.NewStatus).Inc()
			if e.NewStatus == string(stream.StatusConnected) {
				c.connectedNow.WithLabelValues(label).Set(1)
			} else {
				c.connectedNow.WithLabelValues(label).Set(0)
			}
		}),
	)
}

// Close detaches the collector from the bus.
func (c *Collector) Close() {
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}

// Handler returns the scrape handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (used by tests).
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
