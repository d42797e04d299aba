package dispatch

import (
	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"log/slog"
	"sync"
	"time"
)

func init() {
	// The metrics package hands out no-op meters unless this is set.
	metrics.Enabled = true
}

// Stats are cumulative dispatch counts.
type Stats struct {
	Sent              int64 `json:"sent"`
	Succeeded         int64 `json:"succeeded"`
	Rejected          int64 `json:"rejected"`
	Failed            int64 `json:"failed"`
	MissingCredential int64 `json:"missing_credential"`
	BytesSent         int64 `json:"bytes_sent"`
}

type meter struct {
	reg       metrics.Registry
	sent      metrics.Counter
	succeeded metrics.Counter
	rejected  metrics.Counter
	failed    metrics.Counter
	missing   metrics.Counter
	sendRate  metrics.Meter
	bytesRate metrics.Meter

	started  time.Time
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func newMeter(interval time.Duration, logger *slog.Logger) *meter {
	m := &meter{
		reg:       metrics.NewRegistry(),
		sent:      metrics.NewCounter(),
		succeeded: metrics.NewCounter(),
		rejected:  metrics.NewCounter(),
		failed:    metrics.NewCounter(),
		missing:   metrics.NewCounter(),
		sendRate:  metrics.NewMeter(),
		bytesRate: metrics.NewMeter(),
		started:   time.Now(),
		interval:  interval,
		done:      make(chan struct{}),
		logger:    logger,
	}
	for name, metric := range map[string]interface{}{
		"dispatch.sent":      m.sent,
		"dispatch.succeeded": m.succeeded,
		"dispatch.rejected":  m.rejected,
		"dispatch.failed":    m.failed,
		"dispatch.missing":   m.missing,
		"dispatch.rate":      m.sendRate,
		"dispatch.bytes":     m.bytesRate,
	} {
		if err := m.reg.Register(name, metric); err != nil {
			logger.Error("Failed to register metric", "name", name, "error", err)
		}
	}
	if interval > 0 {
		m.ticker = time.NewTicker(interval)
		go m.run()
	}
	return m
}

func (m *meter) mark(o Outcome, bytes int) {
	switch o.(type) {
	case MissingCredential:
		m.missing.Inc(1)
		return
	case Success:
		m.succeeded.Inc(1)
	case Rejected:
		m.rejected.Inc(1)
	case TransportFailure:
		m.failed.Inc(1)
	}
	m.sent.Inc(1)
	m.sendRate.Mark(1)
	m.bytesRate.Mark(int64(bytes))
}

func (m *meter) stats() Stats {
	return Stats{
		Sent:              m.sent.Snapshot().Count(),
		Succeeded:         m.succeeded.Snapshot().Count(),
		Rejected:          m.rejected.Snapshot().Count(),
		Failed:            m.failed.Snapshot().Count(),
		MissingCredential: m.missing.Snapshot().Count(),
		BytesSent:         m.bytesRate.Snapshot().Count(),
	}
}

func (m *meter) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.ticker.C:
			m.log()
		}
	}
}

func (m *meter) log() {
	st := m.stats()
	rate := m.sendRate.Snapshot()
	m.logger.Info("Dispatched updates",
		"n", humanize.Comma(st.Sent),
		"ok", humanize.Comma(st.Succeeded),
		"rejected", humanize.Comma(st.Rejected),
		"failed", humanize.Comma(st.Failed),
		"no.token", humanize.Comma(st.MissingCredential),
		"per.min", humanize.FtoaWithDigits(rate.Rate1()*60, 2),
		"total.bytes", humanize.Bytes(uint64(st.BytesSent)),
		"running", time.Since(m.started).Round(time.Second))
}

func (m *meter) stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		if m.ticker != nil {
			m.ticker.Stop()
		}
		close(m.done)
		m.sendRate.Stop()
		m.bytesRate.Stop()
	})
}
