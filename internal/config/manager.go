// Package config hot-reloads the YAML configuration surrounding an Engine:
// everything outside the deterministic core (transport addresses, NATS
// subjects, circuit-breaker and worker-pool tuning) that an operator may
// reasonably want to change without restarting the process. The core
// engine-construction parameters (symbol, pool_bits, base_price) are read
// once at startup; changing them takes effect only for newly constructed
// engines, preserving the core's single-threaded, no-growth contract.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EngineSection holds the matching engine's construction parameters.
type EngineSection struct {
	Symbol           uint32 `yaml:"symbol" default:"1"`
	PoolBits         uint32 `yaml:"pool_bits" default:"20"`
	BasePrice        uint64 `yaml:"base_price" default:"0"`
	MaxFillsPerOrder int    `yaml:"max_fills_per_order" default:"64"`
}

// NATSSection configures the fill publisher's NATS connection.
type NATSSection struct {
	URL           string `yaml:"url" default:"nats://127.0.0.1:4222"`
	SubjectPrefix string `yaml:"subject_prefix" default:"fills"`
}

// WebSocketSection configures the market-data fan-out listener.
type WebSocketSection struct {
	ListenAddr      string `yaml:"listen_addr" default:":8081"`
	ReadBufferSize  int    `yaml:"read_buffer_size" default:"4096"`
	WriteBufferSize int    `yaml:"write_buffer_size" default:"4096"`
}

// HTTPSection configures the admin and stats API.
type HTTPSection struct {
	ListenAddr  string        `yaml:"listen_addr" default:":8080"`
	ReadTimeout time.Duration `yaml:"read_timeout" default:"5s"`
}

// MetricsSection configures the Prometheus registry.
type MetricsSection struct {
	Namespace string `yaml:"namespace" default:"lobcore"`
}

// CircuitBreakerSection configures the publisher's gobreaker instance.
type CircuitBreakerSection struct {
	MaxRequests uint32        `yaml:"max_requests" default:"5"`
	Timeout     time.Duration `yaml:"timeout" default:"30s"`
	Interval    time.Duration `yaml:"interval" default:"60s"`
}

// WorkerPoolSection configures the ants pool dispatching publish work.
type WorkerPoolSection struct {
	Size int `yaml:"size" default:"64"`
}

// Config is the complete hot-reloadable configuration document.
type Config struct {
	Environment    string                `yaml:"environment" default:"development"`
	Engine         EngineSection         `yaml:"engine"`
	NATS           NATSSection           `yaml:"nats"`
	WebSocket      WebSocketSection      `yaml:"websocket"`
	HTTP           HTTPSection           `yaml:"http"`
	Metrics        MetricsSection        `yaml:"metrics"`
	CircuitBreaker CircuitBreakerSection `yaml:"circuit_breaker"`
	WorkerPool     WorkerPoolSection     `yaml:"worker_pool"`
	GC             GCConfig              `yaml:"gc"`
}

// Manager owns the live Config behind an atomic.Value, reloading it from
// disk whenever the watched file changes and notifying registered callbacks.
type Manager struct {
	viper      *viper.Viper
	configPath string
	env        string
	logger     *zap.Logger

	config atomic.Value // *Config

	watcher    *fsnotify.Watcher
	reloadChan chan struct{}

	callbacks []func(*Config)
	cbLock    sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager constructs a Manager, loads the initial configuration from
// configPath, and starts watching it for changes. A nil logger is replaced
// with zap.NewNop().
func NewManager(configPath string, env string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		viper:      viper.New(),
		configPath: configPath,
		env:        env,
		logger:     logger,
		watcher:    watcher,
		reloadChan: make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	m.viper.SetConfigFile(configPath)
	m.viper.SetEnvPrefix("LOBCORE")
	m.viper.AutomaticEnv()
	m.setDefaults()

	if err := m.loadConfig(); err != nil {
		cancel()
		return nil, err
	}
	if err := m.startWatcher(); err != nil {
		cancel()
		return nil, err
	}

	return m, nil
}

func (m *Manager) setDefaults() {
	m.viper.SetDefault("environment", "development")

	m.viper.SetDefault("engine.symbol", 1)
	m.viper.SetDefault("engine.pool_bits", 20)
	m.viper.SetDefault("engine.base_price", 0)
	m.viper.SetDefault("engine.max_fills_per_order", 64)

	m.viper.SetDefault("nats.url", "nats://127.0.0.1:4222")
	m.viper.SetDefault("nats.subject_prefix", "fills")

	m.viper.SetDefault("websocket.listen_addr", ":8081")
	m.viper.SetDefault("websocket.read_buffer_size", 4096)
	m.viper.SetDefault("websocket.write_buffer_size", 4096)

	m.viper.SetDefault("http.listen_addr", ":8080")
	m.viper.SetDefault("http.read_timeout", "5s")

	m.viper.SetDefault("metrics.namespace", "lobcore")

	m.viper.SetDefault("circuit_breaker.max_requests", 5)
	m.viper.SetDefault("circuit_breaker.timeout", "30s")
	m.viper.SetDefault("circuit_breaker.interval", "60s")

	m.viper.SetDefault("worker_pool.size", 64)

	m.viper.SetDefault("gc.gc_percent", 200)
	m.viper.SetDefault("gc.memory_limit", int64(2147483648))
	m.viper.SetDefault("gc.enable_memory_limit", true)
	m.viper.SetDefault("gc.enable_gc_monitoring", true)
	m.viper.SetDefault("gc.gc_stats_interval", "30s")
}

func (m *Manager) loadConfig() error {
	if _, err := os.Stat(m.configPath); err == nil {
		if err := m.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read file: %w", err)
		}
	}

	cfg := &Config{}
	// Match keys against the yaml tags, the same names the config file uses.
	if err := m.viper.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Environment = m.env

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}

	m.config.Store(cfg)
	m.notifyCallbacks(cfg)
	return nil
}

func (m *Manager) startWatcher() error {
	dir := filepath.Dir(m.configPath)
	if err := m.watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch directory: %w", err)
	}
	m.wg.Add(1)
	go m.watchLoop()
	return nil
}

func (m *Manager) watchLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Name == m.configPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				select {
				case m.reloadChan <- struct{}{}:
				default:
				}
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("config watcher error", zap.Error(err))
		case <-m.reloadChan:
			time.Sleep(100 * time.Millisecond)
			if err := m.loadConfig(); err != nil {
				m.logger.Warn("failed to reload config", zap.Error(err))
			}
		}
	}
}

func (m *Manager) notifyCallbacks(cfg *Config) {
	m.cbLock.RLock()
	defer m.cbLock.RUnlock()
	for _, cb := range m.callbacks {
		go cb(cfg)
	}
}

// Get returns the currently active configuration.
func (m *Manager) Get() *Config {
	return m.config.Load().(*Config)
}

// OnReload registers a callback invoked (in its own goroutine) whenever the
// configuration file is reloaded.
func (m *Manager) OnReload(cb func(*Config)) {
	m.cbLock.Lock()
	defer m.cbLock.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Close stops the file watcher and releases its resources.
func (m *Manager) Close() error {
	m.cancel()
	m.wg.Wait()
	return m.watcher.Close()
}

// Validate checks a Config for internally consistent values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if cfg.Engine.PoolBits > 28 {
		return fmt.Errorf("engine.pool_bits %d exceeds maximum 28", cfg.Engine.PoolBits)
	}
	if cfg.Engine.MaxFillsPerOrder <= 0 {
		return fmt.Errorf("engine.max_fills_per_order must be positive")
	}
	if cfg.WebSocket.ReadBufferSize <= 0 || cfg.WebSocket.WriteBufferSize <= 0 {
		return fmt.Errorf("websocket buffer sizes must be positive")
	}
	if cfg.CircuitBreaker.MaxRequests == 0 {
		return fmt.Errorf("circuit_breaker.max_requests must be positive")
	}
	if cfg.WorkerPool.Size <= 0 {
		return fmt.Errorf("worker_pool.size must be positive")
	}
	if err := ValidateGCConfig(&cfg.GC); err != nil {
		return fmt.Errorf("invalid gc config: %w", err)
	}
	return nil
}

// LoadFromFile reads and unmarshals a Config directly from a YAML file,
// bypassing viper. Used by tools and tests that want a one-shot load
// without the file-watcher machinery.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// SaveToFile marshals cfg as YAML and writes it to path.
func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
