package observd

import (
	"encoding/json"
	"github.com/olahol/melody"
	"github.com/rotblauer/triptrack/events"
	"github.com/rotblauer/triptrack/types/sample"
	"time"
)

type websocketAction string

const (
	websocketActionUpdated websocketAction = "location_updated"
	websocketActionFailed  websocketAction = "dispatch_failed"
)

// Record is one dispatch result as the daemon remembers and broadcasts it.
type Record struct {
	Action  websocketAction `json:"action"`
	Session string          `json:"session"`
	Path    string          `json:"path"`
	Sample  sample.Sample   `json:"sample"`
	Status  string          `json:"status,omitempty"`
	Outcome string          `json:"outcome,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	At      time.Time       `json:"at"`
}

func recordUpdated(ev events.LocationUpdated) Record {
	return Record{
		Action:  websocketActionUpdated,
		Session: ev.SessionID.String(),
		Path:    ev.Path,
		Sample:  ev.Sample,
		Status:  ev.Ack.Status,
		At:      ev.At,
	}
}

func recordFailed(ev events.DispatchFailed) Record {
	return Record{
		Action:  websocketActionFailed,
		Session: ev.SessionID.String(),
		Path:    ev.Path,
		Sample:  ev.Sample,
		Outcome: ev.Outcome,
		Kind:    ev.Kind,
		At:      ev.At,
	}
}

// initMelody sets up the websocket handler.
// New connections get the recent records, then everything as it happens.
func (d *ObserveDaemon) initMelody() {
	d.melodyInstance = melody.New()

	d.melodyInstance.HandleConnect(func(s *melody.Session) {
		d.logger.Debug("Websocket connected", "remote", s.Request.RemoteAddr)
		for _, rec := range d.recent.Get() {
			b, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			_ = s.Write(b)
		}
	})

	// Clients have nothing to say to us.
	d.melodyInstance.HandleMessage(func(s *melody.Session, msg []byte) {
		d.logger.Debug("Websocket message dropped", "remote", s.Request.RemoteAddr, "len", len(msg))
	})

	d.melodyInstance.HandleDisconnect(func(s *melody.Session) {
		d.logger.Debug("Websocket disconnected", "remote", s.Request.RemoteAddr)
	})

	d.melodyInstance.HandleError(func(s *melody.Session, e error) {
		d.logger.Warn("Websocket error", "remote", s.Request.RemoteAddr, "error", e)
	})
}

// subscribe pumps source events into the recent buffer and out to websocket clients.
// The source blocks on its sends until we receive, so the pump runs until Interrupt.
func (d *ObserveDaemon) subscribe() {
	if d.source == nil {
		return
	}
	updated := make(chan events.LocationUpdated)
	failed := make(chan events.DispatchFailed)
	updatedSub := d.source.SubscribeLocationUpdated(updated)
	failedSub := d.source.SubscribeDispatchFailed(failed)
	d.subs = append(d.subs, updatedSub, failedSub)

	d.pumping.Add(1)
	go func() {
		defer d.pumping.Done()
		for {
			select {
			case ev := <-updated:
				d.publish(recordUpdated(ev))
			case ev := <-failed:
				d.publish(recordFailed(ev))
			case err := <-updatedSub.Err():
				if err != nil {
					d.logger.Error("Location updated subscription", "error", err)
				}
				return
			case err := <-failedSub.Err():
				if err != nil {
					d.logger.Error("Dispatch failed subscription", "error", err)
				}
				return
			}
		}
	}()
}

func (d *ObserveDaemon) publish(rec Record) {
	d.recent.Add(rec)
	b, err := json.Marshal(rec)
	if err != nil {
		d.logger.Error("Failed to marshal record", "error", err)
		return
	}
	if d.melodyInstance.IsClosed() {
		return
	}
	if err := d.melodyInstance.Broadcast(b); err != nil {
		d.logger.Warn("Failed to broadcast record", "error", err)
	}
}
