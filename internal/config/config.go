// Package config 提供 ransomcare 的配置管理功能
package config

import (
	"errors"

	"github.com/FloatingGuy/ransomcare/internal/log"
)

// Config 完整配置结构
type Config struct {
	Tracer   TracerConfig   `mapstructure:"tracer"`
	Decision DecisionConfig `mapstructure:"decision"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
}

// TracerConfig 跟踪 agent 配置
type TracerConfig struct {
	Binary      string   `mapstructure:"binary"`       // agent 可执行文件
	Args        []string `mapstructure:"args"`         // 额外参数
	ExcludeFlag string   `mapstructure:"exclude_flag"` // 排除自身 pid 的参数名
}

// DecisionConfig 裁决配置
type DecisionConfig struct {
	Mode      string `mapstructure:"mode"`       // console, allow, deny
	QueueSize int    `mapstructure:"queue_size"` // 待裁决请求队列长度
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别: debug, info, warn, error
	Output     string `mapstructure:"output"`       // 输出方式: console, file, both
	FilePath   string `mapstructure:"file_path"`    // 日志文件路径
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单文件最大大小(MB)
	MaxBackups int    `mapstructure:"max_backups"`  // 最大保留文件数
	MaxAgeDays int    `mapstructure:"max_age_days"` // 最大保留天数
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// HealthConfig gRPC 健康检查配置
type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Logger 转换为日志模块配置
func (c LogConfig) Logger() log.Config {
	return log.Config{
		Level:      c.Level,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.Tracer.Binary == "" {
		return errors.New("tracer.binary is required")
	}
	if c.Tracer.ExcludeFlag == "" {
		return errors.New("tracer.exclude_flag is required")
	}

	validModes := map[string]bool{
		"console": true,
		"allow":   true,
		"deny":    true,
	}
	if !validModes[c.Decision.Mode] {
		return errors.New("decision.mode must be one of: console, allow, deny")
	}
	if c.Decision.QueueSize <= 0 {
		return errors.New("decision.queue_size must be greater than 0")
	}
	if c.Decision.QueueSize > 10000 {
		return errors.New("decision.queue_size must be less than or equal to 10000")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if c.Log.Level != "" && !validLevels[c.Log.Level] {
		return errors.New("log.level must be one of: debug, info, warn, error")
	}

	validOutputs := map[string]bool{
		"console": true,
		"file":    true,
		"both":    true,
	}
	if c.Log.Output != "" && !validOutputs[c.Log.Output] {
		return errors.New("log.output must be one of: console, file, both")
	}
	if c.Log.Output != "console" && c.Log.Output != "" && c.Log.FilePath == "" {
		return errors.New("log.file_path is required when log.output writes to a file")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}
	if c.Health.Enabled && c.Health.Listen == "" {
		return errors.New("health.listen is required when health is enabled")
	}

	return nil
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Tracer: TracerConfig{
			Binary:      "./ransomcare/sniffer",
			Args:        []string{},
			ExcludeFlag: "-x",
		},
		Decision: DecisionConfig{
			Mode:      "console",
			QueueSize: 16,
		},
		Log: LogConfig{
			Level:      "info",
			Output:     "console",
			FilePath:   "/var/log/ransomcare/ransomcare.log",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Health: HealthConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9465",
		},
	}
}
