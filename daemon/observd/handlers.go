package observd

import (
	"encoding/json"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/tracker"
	"net/http"
	"strconv"
	"time"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type observeDaemonStatus struct {
	StartedAt time.Time                   `json:"started_at"`
	Uptime    string                      `json:"uptime"`
	Config    *params.ObserveDaemonConfig `json:"config"`
	WSOpen    bool                        `json:"ws_open"`
	WSConns   int                         `json:"ws_conns"`
	Session   *tracker.Status             `json:"session,omitempty"`
	Recent    []Record                    `json:"recent"`
}

func (d *ObserveDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := observeDaemonStatus{
		StartedAt: d.started,
		Uptime:    time.Since(d.started).Round(time.Second).String(),
		Config:    d.Config,
		WSOpen:    !d.melodyInstance.IsClosed(),
		WSConns:   d.melodyInstance.Len(),
		Recent:    d.recent.Tail(10),
	}
	if d.source != nil {
		ss := d.source.Status()
		st.Session = &ss
	}
	d.writeJSON(w, st)
}

// handleRecent returns the last n records, oldest first. No n means all of them.
func (d *ObserveDaemon) handleRecent(w http.ResponseWriter, r *http.Request) {
	n := d.recent.Len()
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			http.Error(w, "Invalid n", http.StatusBadRequest)
			return
		}
		n = v
	}
	d.writeJSON(w, d.recent.Tail(n))
}

func (d *ObserveDaemon) writeJSON(w http.ResponseWriter, v any) {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		d.logger.Error("Failed to marshal response", "error", err)
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(j); err != nil {
		d.logger.Error("Failed to write response", "error", err)
	}
}
