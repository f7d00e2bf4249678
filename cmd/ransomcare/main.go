// Package main 是 ransomcare 的入口点
//
// ransomcare 启动内核跟踪 agent，将其输出的原始记录关联成文件访问事件，
// 并在检测到可疑进程时询问操作员是否阻断。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/FloatingGuy/ransomcare/internal/config"
	"github.com/FloatingGuy/ransomcare/internal/log"
)

// 版本信息 (由编译时注入)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// 命令行参数
var (
	configPath = flag.String("config", "/etc/ransomcare/ransomcare.yaml", "配置文件路径")
	showVer    = flag.Bool("version", false, "显示版本信息")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("ransomcare %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(cfg.Log.Logger()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger := log.Global()
	defer logger.Sync()

	logger.Info("ransomcare starting",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.String("decision_mode", cfg.Decision.Mode),
	)

	// 日志级别支持热更新，其余配置需要重启
	if err := loader.Watch(func(c *config.Config) {
		if err := log.SetGlobalLevel(c.Log.Level); err != nil {
			logger.Warn("Failed to apply log level", zap.Error(err))
			return
		}
		logger.Info("Config reloaded", zap.String("log_level", c.Log.Level))
	}); err != nil {
		logger.Warn("Failed to watch config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	a, err := newApp(ctx, cfg, logger, os.Stdin, os.Stdout)
	if err != nil {
		logger.Fatal("Failed to assemble components", zap.Error(err))
	}

	if err := a.start(ctx); err != nil {
		logger.Fatal("Failed to start", zap.Error(err))
	}
	logger.Info("Tracing agent started", zap.Strings("argv", a.tracer.Argv()))

	a.wait(ctx)

	logger.Info("Shutting down...")
	a.shutdown()
	logger.Info("ransomcare stopped")
}
