// Package observd serves a read-only local view of a running tracking session:
// its status, the most recent dispatch results, and a websocket feed of updates.
package observd

import (
	"context"
	"errors"
	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/rotblauer/triptrack/common"
	"github.com/rotblauer/triptrack/events"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/tracker"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Source is what the daemon observes. *tracker.Session is one.
type Source interface {
	Status() tracker.Status
	SubscribeLocationUpdated(ch chan<- events.LocationUpdated) event.Subscription
	SubscribeDispatchFailed(ch chan<- events.DispatchFailed) event.Subscription
}

type ObserveDaemon struct {
	Config *params.ObserveDaemonConfig

	source         Source
	logger         *slog.Logger
	melodyInstance *melody.Melody
	recent         *common.RingBuffer[Record]
	started        time.Time

	server   *http.Server
	listener net.Listener
	subs     []event.Subscription
	pumping  sync.WaitGroup

	done        chan struct{}
	interrupted atomic.Bool
}

func NewObserveDaemon(config *params.ObserveDaemonConfig, source Source) *ObserveDaemon {
	logger := slog.With("daemon", "observe")
	if config == nil {
		logger.Warn("No config provided, using default")
		config = params.DefaultObserveDaemonConfig()
	}
	size := config.RecentOutcomes
	if size <= 0 {
		size = params.DefaultObserveDaemonConfig().RecentOutcomes
	}
	d := &ObserveDaemon{
		Config:  config,
		source:  source,
		logger:  logger,
		recent:  common.NewRingBuffer[Record](size),
		started: time.Now(),
		done:    make(chan struct{}),
	}
	d.initMelody()
	return d
}

// Start subscribes to the source and begins serving. It does not block;
// stop it with Interrupt, then Wait.
func (d *ObserveDaemon) Start() error {
	listener, err := net.Listen(d.Config.Network, d.Config.Address)
	if err != nil {
		return err
	}
	d.listener = listener
	d.server = &http.Server{
		Handler:           d.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	d.subscribe()

	go func() {
		err := d.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !d.interrupted.Load() {
			d.logger.Error("Observe daemon serve error", "error", err)
		}
	}()
	d.logger.Info("Observe daemon listening", "config", d.Config.ListenerConfig, "bound", listener.Addr().String())
	return nil
}

// Addr is the bound listener address, useful when the configured port is 0.
func (d *ObserveDaemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Interrupt stops serving and unsubscribes from the source.
func (d *ObserveDaemon) Interrupt() {
	if !d.interrupted.CompareAndSwap(false, true) {
		return
	}
	defer close(d.done)
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Warn("Observe daemon shutdown", "error", err)
		}
	}
	for _, sub := range d.subs {
		sub.Unsubscribe()
	}
	d.pumping.Wait()
	if err := d.melodyInstance.Close(); err != nil {
		d.logger.Warn("Websocket close", "error", err)
	}
	d.logger.Info("Observe daemon stopped")
}

func (d *ObserveDaemon) Wait() {
	<-d.done
}

func (d *ObserveDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(d.loggingMiddleware)

	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = d.melodyInstance.HandleRequest(w, r)
	})

	apiRoutes := router.NewRoute().Subrouter()
	apiRoutes.Use(permissiveCorsMiddleware)
	apiRoutes.Path("/ping").HandlerFunc(pingPong).Methods(http.MethodGet)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))
	apiJSONRoutes.Path("/status").HandlerFunc(d.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/recent").HandlerFunc(d.handleRecent).Methods(http.MethodGet)

	return router
}
