package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 RANSOMCARE_DECISION_MODE
const EnvPrefix = "RANSOMCARE"

// Loader 配置加载器
type Loader struct {
	v       *viper.Viper
	config  *Config
	mu      sync.RWMutex
	watches []func(*Config)
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		v:       viper.New(),
		config:  Default(),
		watches: make([]func(*Config), 0),
	}
}

// Load 从指定路径加载配置
// 支持多个路径，后面的配置会覆盖前面的；不存在的文件被忽略
func (l *Loader) Load(paths ...string) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.v.SetConfigType("yaml")

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	l.setDefaults()

	for _, path := range paths {
		if path == "" {
			continue
		}
		l.v.SetConfigFile(path)
		if err := l.v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	l.config = cfg
	return cfg, nil
}

// setDefaults 设置默认值
// 每个键都要有默认值，AutomaticEnv 才能覆盖文件中没有出现的键
func (l *Loader) setDefaults() {
	def := Default()

	l.v.SetDefault("tracer.binary", def.Tracer.Binary)
	l.v.SetDefault("tracer.args", def.Tracer.Args)
	l.v.SetDefault("tracer.exclude_flag", def.Tracer.ExcludeFlag)
	l.v.SetDefault("decision.mode", def.Decision.Mode)
	l.v.SetDefault("decision.queue_size", def.Decision.QueueSize)
	l.v.SetDefault("log.level", def.Log.Level)
	l.v.SetDefault("log.output", def.Log.Output)
	l.v.SetDefault("log.file_path", def.Log.FilePath)
	l.v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	l.v.SetDefault("log.max_backups", def.Log.MaxBackups)
	l.v.SetDefault("log.max_age_days", def.Log.MaxAgeDays)
	l.v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	l.v.SetDefault("metrics.listen", def.Metrics.Listen)
	l.v.SetDefault("health.enabled", def.Health.Enabled)
	l.v.SetDefault("health.listen", def.Health.Listen)
}

// Get 获取当前配置（线程安全）
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Watch 监听配置文件变更
// 新配置通过校验后才会替换当前配置并通知 callback
func (l *Loader) Watch(callback func(*Config)) error {
	l.mu.Lock()
	l.watches = append(l.watches, callback)
	l.mu.Unlock()

	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.reload()
	})
	l.v.WatchConfig()
	return nil
}

// reload 重新解析配置，无效时保持原配置
func (l *Loader) reload() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return false
	}
	if err := cfg.Validate(); err != nil {
		return false
	}

	l.config = cfg
	for _, watch := range l.watches {
		watch(cfg)
	}
	return true
}

// LoadAndValidate 加载并验证配置
func LoadAndValidate(paths ...string) (*Config, error) {
	loader := NewLoader()
	cfg, err := loader.Load(paths...)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
