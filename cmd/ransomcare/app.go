package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/FloatingGuy/ransomcare/internal/bus"
	"github.com/FloatingGuy/ransomcare/internal/config"
	"github.com/FloatingGuy/ransomcare/internal/correlator"
	"github.com/FloatingGuy/ransomcare/internal/decision"
	"github.com/FloatingGuy/ransomcare/internal/event"
	"github.com/FloatingGuy/ransomcare/internal/health"
	"github.com/FloatingGuy/ransomcare/internal/log"
	"github.com/FloatingGuy/ransomcare/internal/metrics"
	"github.com/FloatingGuy/ransomcare/internal/pathresolve"
	"github.com/FloatingGuy/ransomcare/internal/procinfo"
	"github.com/FloatingGuy/ransomcare/internal/tracer"
)

// app 组装好的运行时组件
type app struct {
	cfg        *config.Config
	logger     *log.Logger
	metrics    *metrics.Metrics
	bus        *bus.Bus
	correlator *correlator.Correlator
	tracer     *tracer.Manager
	decisions  *bus.Queued
	health     *health.Server
}

// newApp 按配置组装各组件，in/out 为操作员终端
func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger, in io.Reader, out io.Writer) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New("ransomcare"),
		bus:     bus.New(),
	}

	inspector := procinfo.NewSystemInspector()
	cwd := procinfo.NewResolver(inspector, logger.WithModule("procinfo"))
	paths := pathresolve.New(cwd)

	a.correlator = correlator.New(paths, a.bus,
		correlator.WithLogger(logger.WithModule("correlator")),
		correlator.WithMetrics(a.metrics),
	)

	provider, err := newProvider(cfg.Decision.Mode, in, out, inspector, logger.WithModule("console"))
	if err != nil {
		return nil, err
	}
	handler := decision.NewHandler(provider, a.bus,
		decision.WithLogger(logger.WithModule("decision")),
		decision.WithMetrics(a.metrics),
		decision.WithContext(ctx),
	)
	a.decisions = bus.NewQueued("decision", handler, cfg.Decision.QueueSize,
		bus.WithLogger(logger.WithModule("bus")),
		bus.WithDropFunc(func(name string, _ event.Event) {
			a.metrics.QueueDropped(name)
		}),
	)

	eventLogger := logger.WithModule("event")
	a.bus.Subscribe(bus.SubscriberFunc(func(ev event.Event) {
		a.metrics.EventPublished(string(ev.Type()))
	}))
	a.bus.Subscribe(bus.SubscriberFunc(func(ev event.Event) {
		eventLogger.Debug("Event published", zap.Any("event", event.ToECS(ev)))
	}))
	a.bus.Subscribe(a.decisions)

	if cfg.Health.Enabled {
		a.health = health.New(cfg.Health.Listen, logger.WithModule("health"))
	}

	a.tracer = tracer.NewManager(tracer.Config{
		Binary:      cfg.Tracer.Binary,
		Args:        cfg.Tracer.Args,
		ExcludeFlag: cfg.Tracer.ExcludeFlag,
	}, a.correlator,
		tracer.WithLogger(logger.WithModule("tracer")),
		tracer.WithMetrics(a.metrics),
		tracer.WithStateFunc(func(running bool) {
			if a.health != nil {
				a.health.SetServing(running)
			}
		}),
	)

	return a, nil
}

// newProvider 根据裁决模式创建 Provider
func newProvider(mode string, in io.Reader, out io.Writer, inspector procinfo.Inspector, logger *log.Logger) (decision.Provider, error) {
	if mode == "console" {
		return decision.NewConsole(in, out, inspector, logger), nil
	}
	v, ok := decision.ParseVerdict(mode)
	if !ok {
		return nil, fmt.Errorf("unknown decision mode %q", mode)
	}
	return decision.Auto{Verdict: v}, nil
}

// start 启动辅助服务和 agent，agent 启动失败时返回错误
func (a *app) start(ctx context.Context) error {
	a.decisions.Start()

	if a.cfg.Metrics.Enabled {
		go func() {
			if err := a.metrics.Serve(ctx, a.cfg.Metrics.Listen, a.logger.WithModule("metrics")); err != nil {
				a.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}
	if a.health != nil {
		go func() {
			if err := a.health.Serve(ctx); err != nil {
				a.logger.Error("Health server failed", zap.Error(err))
			}
		}()
	}

	if err := a.tracer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracing agent: %w", err)
	}
	return nil
}

// wait 阻塞到 ctx 取消或 agent 退出
func (a *app) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-a.tracer.Done():
		a.logger.Warn("Tracing agent exited")
	}
}

// shutdown 停止 agent 并关闭裁决队列
func (a *app) shutdown() {
	if err := a.tracer.Stop(); err != nil {
		a.logger.Error("Failed to stop tracing agent", zap.Error(err))
	}
	a.decisions.Close()
}
