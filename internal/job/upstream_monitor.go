package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultMonitorInterval = 30 * time.Second
	monitorPingTimeout     = 5 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamGauge receives the result of every ping.
type UpstreamGauge interface {
	SetUpstreamUp(up bool)
}

// UpstreamMonitor periodically pings Freqtrade and reports reachability. It only logs state
// changes.
type UpstreamMonitor struct {
	tracer   trace.Tracer
	pinger   Pinger
	gauge    UpstreamGauge
	interval time.Duration

	up    bool
	known bool
}

func NewUpstreamMonitor(tracer trace.Tracer, pinger Pinger, gauge UpstreamGauge, interval time.Duration) *UpstreamMonitor {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("job")
	}
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	return &UpstreamMonitor{
		tracer:   tracer,
		pinger:   pinger,
		gauge:    gauge,
		interval: interval,
	}
}

// Start pings once immediately and then every interval. Blocks until ctx is cancelled.
func (m *UpstreamMonitor) Start(ctx context.Context) {
	if m.pinger == nil {
		log.Println("Upstream monitor disabled: no freqtrade client")
		<-ctx.Done()
		return
	}

	log.Println("Upstream monitor starting...")
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Upstream monitor stopped")
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *UpstreamMonitor) check(ctx context.Context) {
	ctx, span := m.tracer.Start(ctx, "job.UpstreamMonitor.check")
	defer span.End()

	pingCtx, cancel := context.WithTimeout(ctx, monitorPingTimeout)
	defer cancel()

	err := m.pinger.Ping(pingCtx)
	up := err == nil
	if err != nil {
		span.RecordError(err)
	}
	if m.gauge != nil {
		m.gauge.SetUpstreamUp(up)
	}

	if m.known && m.up == up {
		return
	}
	m.known = true
	m.up = up
	if up {
		log.Println("freqtrade api reachable")
	} else {
		log.Printf("freqtrade api unreachable: %v", err)
	}
}
