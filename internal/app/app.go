package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"maillog/internal/config"
	"maillog/internal/cycle"
	"maillog/internal/eventbus"
	"maillog/internal/maillogger"
	"maillog/internal/metrics"
	"maillog/internal/notifier"
	rtsup "maillog/internal/runtime/supervisor"
	"maillog/internal/severity"
	"maillog/internal/storage"
	"maillog/internal/transport"
	"maillog/pkg/logx"
)

const shutdownTimeout = 30 * time.Second

// App is one configured maillog process.
type App struct {
	mgr    *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	bus   eventbus.Bus
	store storage.Store
	met   *metrics.Metrics
	sup   *rtsup.Supervisor

	// DefaultLevel applies to input lines without a level token.
	DefaultLevel severity.Severity

	// inflight is held shared by Handle while it logs, so a replaced
	// pipeline is flushed only after the calls using it have returned.
	inflight sync.RWMutex

	mu      sync.RWMutex
	cfg     *config.Config
	pipe    *pipeline
	cycle   *cycle.Scheduler
	updates chan *config.Config
}

// pipeline is everything rebuilt on a logger/mail/transport/notifier
// change.
type pipeline struct {
	transports transport.Multi
	notif      *notifier.Service
	logger     *maillogger.Logger
}

// New loads the config at path and builds the pipeline. Background loops
// start with Run.
func New(ctx context.Context, path string) (*App, error) {
	mgr := config.NewManager(path, logx.Nop())
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, log := logx.New(logxConfig(cfg.Logging))
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	store, err := openStorage(cfg.Storage, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	a := &App{
		mgr:          mgr,
		logSvc:       logSvc,
		log:          log.With(logx.String("comp", "app")),
		bus:          eventbus.New(),
		store:        store,
		met:          metrics.New(),
		DefaultLevel: severity.Error,
		cfg:          cfg,
	}
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(false))

	pipe, err := a.buildPipeline(ctx, cfg)
	if err != nil {
		a.closeShared()
		return nil, err
	}
	a.pipe = pipe
	a.log.Info("maillog ready",
		logx.Strs("transports", config.EnabledTransports(cfg.Transport)),
		logx.String("threshold", pipe.logger.Threshold().String()),
		logx.Bool("aggregate", cfg.Logger.Aggregates()),
	)
	return a, nil
}

func (a *App) buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	trs, err := OpenTransports(cfg, a.log)
	if err != nil {
		return nil, err
	}
	p := &pipeline{transports: trs}
	var tr transport.Transport = trs

	ncfg, err := notifierConfig(cfg.Notifier)
	if err != nil {
		_ = trs.Close()
		return nil, err
	}
	if ncfg.Enabled {
		p.notif = notifier.New(ncfg, trs, transportName(trs), a.log.With(logx.String("comp", "notifier")), a.bus, a.store)
		// Workers outlive ctx so Stop can drain the queue on shutdown.
		p.notif.Start(context.WithoutCancel(ctx))
		tr = p.notif
	} else if a.store != nil {
		tr = recorded{next: trs, name: transportName(trs), store: a.store}
	}

	lcfg, err := a.loggerConfig(cfg, tr)
	if err != nil {
		p.shutdown(ctx, a.log)
		return nil, err
	}
	if p.logger, err = maillogger.New(lcfg); err != nil {
		p.shutdown(ctx, a.log)
		return nil, err
	}
	return p, nil
}

func (a *App) loggerConfig(cfg *config.Config, tr transport.Transport) (maillogger.Config, error) {
	th, err := config.Threshold(cfg.Logger)
	if err != nil {
		return maillogger.Config{}, err
	}
	tpl, err := Template(cfg)
	if err != nil {
		return maillogger.Config{}, err
	}
	flush, err := config.Duration("logger.flush_timeout", cfg.Logger.FlushTimeout, 0)
	if err != nil {
		return maillogger.Config{}, err
	}
	return maillogger.Config{
		Threshold:    th,
		Aggregate:    cfg.Logger.Aggregates(),
		MaxEvents:    cfg.Logger.MaxEvents,
		TitlePrefix:  cfg.Logger.TitlePrefix,
		Transport:    tr,
		Template:     tpl,
		Fallback:     a.log.With(logx.String("comp", "maillogger")),
		Observer:     maillogger.Observers{a.met, maillogger.BusObserver{Bus: a.bus}},
		FlushTimeout: flush,
	}, nil
}

// shutdown flushes the digest, drains the notifier and closes transports.
func (p *pipeline) shutdown(ctx context.Context, log logx.Logger) {
	if p.logger != nil {
		// Flush reports failures to the fallback sink itself.
		_ = p.logger.Flush(ctx)
	}
	if p.notif != nil {
		p.notif.Stop(ctx)
	}
	if err := p.transports.Close(); err != nil {
		log.Warn("transport close failed", logx.Err(err))
	}
}

func (a *App) Logger() *maillogger.Logger {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pipe.logger
}

func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *App) Bus() eventbus.Bus             { return a.bus }
func (a *App) Metrics() *metrics.Metrics     { return a.met }
func (a *App) Log() logx.Logger              { return a.log }
func (a *App) Supervisor() *rtsup.Supervisor { return a.sup }

// Handle logs one input line.
func (a *App) Handle(ctx context.Context, line string) {
	level, msg := ParseLine(line, a.DefaultLevel)
	if msg == "" {
		return
	}
	a.inflight.RLock()
	defer a.inflight.RUnlock()
	if err := a.Logger().Log(ctx, level, maillogger.Text(msg)); err != nil {
		a.log.Warn("event not delivered", logx.String("level", level.String()), logx.Err(err))
	}
}

// Rotate sends the current digest and starts a new cycle.
func (a *App) Rotate(ctx context.Context) error { return a.Logger().Rotate(ctx) }

// Run starts the daemon loops: metrics, config hot reload and cycle
// rotation. It returns once they are scheduled.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()
	if cfg.Metrics.Enabled {
		a.sup.Go("metrics.http", func(c context.Context) error {
			return a.met.Serve(c, metrics.ServerConfig{
				Addr:          cfg.Metrics.Addr,
				Path:          cfg.Metrics.Path,
				Token:         cfg.Metrics.Token,
				AllowInsecure: cfg.Metrics.AllowInsecure,
				Pprof:         cfg.Metrics.Pprof,
				Deliveries:    a.store,
			}, a.log.With(logx.String("comp", "metrics")))
		})
	}
	a.sup.Go("metrics.bus", func(c context.Context) error { return a.met.WatchBus(c, a.bus) })

	a.mu.Lock()
	a.updates = a.mgr.Subscribe(1)
	updates := a.updates
	a.mu.Unlock()
	a.sup.GoRestart("config.watch", a.mgr.Watch, rtsup.WithPublishFirstError(true))
	a.sup.Go("config.apply", func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-updates:
				if !ok {
					return nil
				}
				a.Apply(c, next)
			}
		}
	})

	return a.setCycle(cfg.Cycle)
}

func (a *App) setCycle(c config.CycleConfig) error {
	a.mu.Lock()
	old := a.cycle
	a.cycle = nil
	a.mu.Unlock()
	if old != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = old.Stop(ctx)
		cancel()
	}
	if c.Schedule == "" {
		return nil
	}
	s, err := cycle.New(c.Schedule, c.Timezone, a, a.log.With(logx.String("comp", "cycle")))
	if err != nil {
		return err
	}
	s.Start()
	a.mu.Lock()
	a.cycle = s
	a.mu.Unlock()
	return nil
}

// Apply switches to a reloaded configuration. The old pipeline flushes
// its digest before it is closed. On error the current pipeline stays.
func (a *App) Apply(ctx context.Context, next *config.Config) {
	prev := a.Config()
	changed, attrs := config.Diff(prev, next)
	if len(changed) == 0 {
		return
	}
	a.log.Info("config changed", append(attrs, logx.Strs("sections", changed))...)
	a.logSvc.Apply(logxConfig(next.Logging))

	rebuild := slices.ContainsFunc(changed, func(s string) bool {
		return s == "logger" || s == "mail" || s == "transport" || s == "notifier"
	})
	for _, s := range []string{"storage", "metrics"} {
		if slices.Contains(changed, s) {
			a.log.Warn("config section applies after restart", logx.String("section", s))
		}
	}

	var old *pipeline
	if rebuild {
		pipe, err := a.buildPipeline(ctx, next)
		if err != nil {
			a.log.Error("reload failed; keeping current pipeline", logx.Err(err))
			return
		}
		a.mu.Lock()
		old, a.pipe = a.pipe, pipe
		a.mu.Unlock()
	}
	a.mu.Lock()
	a.cfg = next
	a.mu.Unlock()

	if old != nil {
		a.waitHandles()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		old.shutdown(sctx, a.log)
		cancel()
	}
	if slices.Contains(changed, "cycle") {
		if err := a.setCycle(next.Cycle); err != nil {
			a.log.Error("cycle schedule not applied", logx.Err(err))
		}
	}
}

// waitHandles returns once every Handle call that started before it has
// finished.
func (a *App) waitHandles() {
	a.inflight.Lock()
	a.inflight.Unlock()
}

// Close stops the loops, sends the final digest and releases resources.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.setCycle(config.CycleConfig{}); err != nil {
		errs = append(errs, err)
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.sup.Stop(sctx); err != nil {
		a.log.Warn("background task error", logx.Err(err))
	}
	a.mu.Lock()
	pipe, updates := a.pipe, a.updates
	a.updates = nil
	a.mu.Unlock()
	if updates != nil {
		a.mgr.Unsubscribe(updates)
	}

	// ctx may already be canceled by a signal; the final flush uses sctx.
	pipe.shutdown(sctx, a.log)

	a.closeShared()
	return errors.Join(errs...)
}

func (a *App) closeShared() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	_ = a.logSvc.Close()
}
