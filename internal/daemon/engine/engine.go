// Package engine wires the daemon's components onto one bus and runs them
// under a single context.
package engine

import (
	"context"
	"sync"

	"github.com/grovetools/peersync/config"
	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/internal/daemon/pipeline"
	"github.com/grovetools/peersync/internal/daemon/source"
	"github.com/grovetools/peersync/internal/daemon/store"
	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/hub"
	"github.com/grovetools/peersync/pkg/ledger"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/grovetools/peersync/state"
	"github.com/sirupsen/logrus"
)

// Options configures an Engine. Zero values fall back to the defaults in Config.
type Options struct {
	Config *config.Config

	// Build turns a batch of change signals into snapshot data.
	Build pipeline.BuildFunc
	// Connector and Resolver override the websocket transport.
	Connector hub.Connector
	Resolver  hub.Resolver
	Policy    hub.RetryPolicy
	// LedgerStore overrides the backend selected by Config.Ledger.
	LedgerStore ledger.Store
	// Sources are run in addition to the configured watch sources.
	Sources []source.Source
	// StatePath is where the halt flag is kept across restarts.
	StatePath string

	Logger *logrus.Entry
}

// Engine owns every long-lived daemon component.
type Engine struct {
	cfg    *config.Config
	logger *logrus.Entry

	bus       *bus.Bus
	store     *store.Store
	feed      *store.Feed
	collector *pipeline.Collector
	builder   *pipeline.Builder
	manager   *hub.Manager
	frames    *hub.FrameRouter
	publisher *hub.SnapshotPublisher
	ledger    *ledger.Ledger
	watcher   *ledger.Watcher
	sources   []source.Source
	state     *state.File
	closer    func() error

	builds     *bus.Subscription[models.BuildCompleted]
	reconnects *bus.Subscription[models.Reconnected]
	resets     *bus.Subscription[models.RetryReset]
	halts      *bus.Subscription[models.HaltChanged]

	mu      sync.Mutex
	started bool
}

// New builds every component and subscribes them to the bus. Nothing runs
// until Start.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	build := opts.Build
	if build == nil {
		build = pipeline.HandleMapBuild
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		store:  store.New(),
		state:  state.Open(opts.StatePath),
	}
	e.bus = bus.New(logger.WithField("component", "bus"))
	e.feed = store.NewFeed(e.store, e.bus)

	e.collector = pipeline.NewCollector(
		pipeline.WithDebounce(cfg.Pipeline.DebounceDuration(), cfg.Pipeline.FastDebounceDuration()),
		pipeline.WithFastKinds(cfg.Pipeline.Kinds()...),
	)
	e.builder = pipeline.NewBuilder(e.collector, build, e.bus, logger.WithField("component", "builder"))

	ledgerStore, closer := opts.LedgerStore, func() error { return nil }
	if ledgerStore == nil {
		var err error
		ledgerStore, closer, err = ledger.OpenStore(cfg.Ledger.Backend, cfg.Ledger.Path)
		if err != nil {
			e.bus.Close()
			return nil, err
		}
	}
	e.closer = closer
	e.ledger = ledger.New(ledgerStore, e.bus, logger.WithField("component", "ledger"),
		ledger.WithMaxStored(cfg.Ledger.MaxStored))
	e.watcher = ledger.NewWatcher(e.ledger, e.bus, logger.WithField("component", "ledger"))

	resolver := opts.Resolver
	if resolver == nil {
		resolver = hub.NewTokenResolver(cfg.Hub.TokenEnv)
	}
	connector := opts.Connector
	if connector == nil {
		settings := hub.DefaultWebsocketSettings()
		settings.HandshakeTimeout = cfg.Hub.HandshakeTimeoutDuration()
		settings.PingInterval = cfg.Hub.PingIntervalDuration()
		connector = hub.NewWebsocketConnector(settings)
	}
	e.frames = hub.NewFrameRouter(e.bus, logger.WithField("component", "hub"))
	if ws, ok := connector.(*hub.WebsocketConnector); ok && ws.OnMessage == nil {
		ws.OnMessage = e.frames.Dispatch
	}
	e.resets = bus.Subscribe[models.RetryReset](e.bus)
	e.manager = hub.NewManager(hub.Options{
		Endpoint:  cfg.Hub.Endpoint,
		Resolver:  resolver,
		Connector: connector,
		Policy:    opts.Policy,
		Bus:       e.bus,
		Resets:    e.resets.Events(),
		Logger:    logger.WithField("component", "hub"),
	})
	e.publisher = hub.NewSnapshotPublisher(e.manager, logger.WithField("component", "publisher"))
	e.builds = bus.Subscribe[models.BuildCompleted](e.bus)
	e.reconnects = bus.Subscribe[models.Reconnected](e.bus)
	e.halts = bus.Subscribe[models.HaltChanged](e.bus)

	for _, w := range cfg.Sources.Watch {
		kind, err := models.ParseChangeKind(w.Kind)
		if err != nil {
			continue
		}
		src, err := source.NewWatchSource(kind, w.Paths, w.Ignore, logger.WithField("component", "source"))
		if err != nil {
			logger.WithError(err).Warn("Skipping watch source")
			continue
		}
		e.sources = append(e.sources, src)
	}
	e.sources = append(e.sources, source.NewBusSource(e.bus))
	e.sources = append(e.sources, opts.Sources...)

	e.store.ApplyUpdate(store.Update{Type: store.UpdateEndpoint, Source: "config", Payload: cfg.Hub.Endpoint})
	return e, nil
}

// Start loads the ledger, runs every component and blocks until ctx is
// cancelled. Teardown completes before it returns.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New(errors.ErrCodeInternal, "engine already started")
	}
	e.started = true
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.ledger.Load()

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { e.feed.Run(ctx) })
	run(func() { e.watcher.Run(ctx) })
	run(func() { e.publisher.Run(ctx, e.builds.Events(), e.reconnects.Events()) })
	run(e.persistHalts)
	e.restoreHalt()
	run(func() { e.builder.Run(ctx, e.cfg.Pipeline.TickIntervalDuration()) })

	for _, s := range e.sources {
		s := s
		run(func() {
			log := e.logger.WithField("source", s.Name())
			log.Info("Starting source")
			if err := s.Run(ctx, e.collector); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("Source failed")
			}
		})
	}

	if e.manager.Endpoint() != "" {
		if err := e.manager.Start(); err != nil {
			e.logger.WithError(err).Error("Failed to start connection manager")
		}
	} else {
		e.logger.Warn("No hub endpoint configured, waiting for one")
	}

	<-ctx.Done()
	e.shutdown()
	wg.Wait()
	return nil
}

// shutdown stops the components that are not driven by ctx.
func (e *Engine) shutdown() {
	e.logger.Info("Shutting down engine")
	e.builder.Close()
	e.manager.Dispose()
	e.builds.Close()
	e.reconnects.Close()
	e.resets.Close()
	e.halts.Close()
	e.bus.Close()
	if err := e.closer(); err != nil {
		e.logger.WithError(err).Warn("Failed to close ledger store")
	}
}

func (e *Engine) restoreHalt() {
	halted, err := e.state.GetBool(state.KeyHalted)
	if err != nil {
		e.logger.WithError(err).WithField("path", e.state.Path()).Warn("Failed to read daemon state")
		return
	}
	if halted {
		e.logger.Info("Restoring halted builder")
		e.builder.SetHalt(true)
	}
}

func (e *Engine) persistHalts() {
	for ev := range e.halts.Events() {
		if err := e.state.Set(state.KeyHalted, ev.Halted); err != nil {
			e.logger.WithError(err).Warn("Failed to persist halt flag")
		}
	}
}

// SetEndpoint pushes a new hub endpoint into the connection manager, starting
// it if no endpoint was configured before.
func (e *Engine) SetEndpoint(endpoint string) bool {
	changed := e.manager.SetEndpoint(endpoint)
	if !changed {
		return false
	}
	e.store.ApplyUpdate(store.Update{Type: store.UpdateEndpoint, Source: "config", Payload: endpoint})

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started && endpoint != "" && !e.manager.Disposed() {
		if err := e.manager.Start(); err != nil {
			e.logger.WithError(err).Debug("Connection manager not started")
		}
	}
	return true
}

// Notify forwards a raw change signal to the collector.
func (e *Engine) Notify(kind models.ChangeKind, handle string) {
	e.collector.Notify(kind, handle)
}

// ResetRetry announces a retry reset on the bus.
func (e *Engine) ResetRetry(reason string) {
	e.bus.Publish(models.RetryReset{Reason: reason})
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Store returns the engine's state store.
func (e *Engine) Store() *store.Store { return e.store }

// Collector returns the change collector.
func (e *Engine) Collector() *pipeline.Collector { return e.collector }

// Builder returns the single-flight builder.
func (e *Engine) Builder() *pipeline.Builder { return e.builder }

// Ledger returns the notification ledger.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Manager returns the hub connection manager.
func (e *Engine) Manager() *hub.Manager { return e.manager }
