// Package config 提供定价服务的配置加载、校验与热更新.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/bsm/logging"
)

// Config 全局顶级配置结构.
type Config struct {
	Version   string          `mapstructure:"version"   toml:"version"`
	Server    ServerConfig    `mapstructure:"server"    toml:"server"`
	Log       LogConfig       `mapstructure:"log"       toml:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   toml:"metrics"`
	Pricing   PricingConfig   `mapstructure:"pricing"   toml:"pricing"`
	Grid      GridConfig      `mapstructure:"grid"      toml:"grid"`
	Cache     CacheConfig     `mapstructure:"cache"     toml:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" toml:"ratelimit"`
	IDGen     IDGenConfig     `mapstructure:"idgen"     toml:"idgen"`
	Tracing   TracingConfig   `mapstructure:"tracing"   toml:"tracing"`
}

// ServerConfig 定义服务器运行时的基础网络与环境参数.
type ServerConfig struct {
	Name        string `mapstructure:"name"        toml:"name"        validate:"required"`
	Environment string `mapstructure:"environment" toml:"environment" validate:"oneof=dev test prod"`
	HTTP        struct {
		Addr              string        `mapstructure:"addr"                toml:"addr"`
		Port              int           `mapstructure:"port"                toml:"port"                validate:"required,min=1,max=65535"`
		ReadTimeout       time.Duration `mapstructure:"read_timeout"        toml:"read_timeout"`
		ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" toml:"read_header_timeout"`
		WriteTimeout      time.Duration `mapstructure:"write_timeout"       toml:"write_timeout"`
		IdleTimeout       time.Duration `mapstructure:"idle_timeout"        toml:"idle_timeout"`
		ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    toml:"shutdown_timeout"`
		MaxBodyBytes      int64         `mapstructure:"max_body_bytes"      toml:"max_body_bytes"`
	} `mapstructure:"http" toml:"http"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level         string        `mapstructure:"level"          toml:"level"          validate:"omitempty,oneof=debug info warn error"`
	Format        string        `mapstructure:"format"         toml:"format"         validate:"omitempty,oneof=json text"`
	File          string        `mapstructure:"file"           toml:"file"`        // 为空时只输出到标准输出。
	MaxSize       int           `mapstructure:"max_size"       toml:"max_size"`    // 单个文件最大大小 (MB)。
	MaxBackups    int           `mapstructure:"max_backups"    toml:"max_backups"` // 最大备份数。
	MaxAge        int           `mapstructure:"max_age"        toml:"max_age"`     // 最大保留天数。
	Compress      bool          `mapstructure:"compress"       toml:"compress"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" toml:"slow_threshold"` // HTTP 慢请求阈值。
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// PricingConfig 请求体缺省字段时使用的默认定价参数.
type PricingConfig struct {
	Spot          float64 `mapstructure:"spot"           toml:"spot"           validate:"gt=0"`
	Strike        float64 `mapstructure:"strike"         toml:"strike"         validate:"gt=0"`
	Rate          float64 `mapstructure:"rate"           toml:"rate"`
	Time          float64 `mapstructure:"time"           toml:"time"           validate:"gt=0"`
	Volatility    float64 `mapstructure:"volatility"     toml:"volatility"     validate:"gt=0"`
	DecimalPlaces int32   `mapstructure:"decimal_places" toml:"decimal_places" validate:"min=0,max=16"`
}

// GridConfig 网格求值参数.
type GridConfig struct {
	MaxPoints     int `mapstructure:"max_points"     toml:"max_points"     validate:"min=1"`
	MaxGoroutines int `mapstructure:"max_goroutines" toml:"max_goroutines" validate:"min=0"` // 0 表示 GOMAXPROCS。
	SpotPoints    int `mapstructure:"spot_points"    toml:"spot_points"    validate:"min=1"`
	VolPoints     int `mapstructure:"vol_points"     toml:"vol_points"     validate:"min=1"`
	TimePoints    int `mapstructure:"time_points"    toml:"time_points"    validate:"min=1"`
}

// CacheConfig 热力图结果缓存 (bigcache) 参数.
type CacheConfig struct {
	Enabled          bool          `mapstructure:"enabled"             toml:"enabled"`
	TTL              time.Duration `mapstructure:"ttl"                 toml:"ttl"`
	Shards           int           `mapstructure:"shards"              toml:"shards"`
	MaxEntrySize     int           `mapstructure:"max_entry_size"      toml:"max_entry_size"`
	HardMaxCacheSize int           `mapstructure:"hard_max_cache_size" toml:"hard_max_cache_size"` // MB
}

// RateLimitConfig 限流参数：每个客户端在 Window 内最多 Rate 个请求.
// RedisAddr 为空时使用进程内令牌桶（容量 Burst），否则使用 Redis 滑动窗口.
type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"        toml:"enabled"`
	Rate          int           `mapstructure:"rate"           toml:"rate"`
	Burst         int           `mapstructure:"burst"          toml:"burst"`
	Window        time.Duration `mapstructure:"window"         toml:"window"`
	MaxKeys       int           `mapstructure:"max_keys"       toml:"max_keys"       validate:"min=0"`
	IdleTTL       time.Duration `mapstructure:"idle_ttl"       toml:"idle_ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"     toml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" toml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"       toml:"redis_db"`
}

// TracingConfig 链路追踪（OpenTelemetry OTLP）配置.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"min=0,max=1"`
}

// IDGenConfig 请求 ID 生成器参数.
type IDGenConfig struct {
	Type      string `mapstructure:"type"       toml:"type"       validate:"omitempty,oneof=snowflake sonyflake"`
	MachineID int64  `mapstructure:"machine_id" toml:"machine_id" validate:"min=0,max=1023"`
	StartTime string `mapstructure:"start_time" toml:"start_time"`
}

var (
	vInstance = viper.New()
	validate  = validator.New()

	hooksMu  sync.Mutex
	onReload []func(*Config)
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	hooksMu.Lock()
	defer hooksMu.Unlock()
	onReload = append(onReload, hook)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "bsm")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.http.addr", "")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", 5*time.Second)
	v.SetDefault("server.http.read_header_timeout", 2*time.Second)
	v.SetDefault("server.http.write_timeout", 10*time.Second)
	v.SetDefault("server.http.idle_timeout", 60*time.Second)
	v.SetDefault("server.http.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.http.max_body_bytes", 1<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.compress", false)
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.slow_threshold", 500*time.Millisecond)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("pricing.spot", 100.0)
	v.SetDefault("pricing.strike", 100.0)
	v.SetDefault("pricing.rate", 0.05)
	v.SetDefault("pricing.time", 1.0)
	v.SetDefault("pricing.volatility", 0.2)
	v.SetDefault("pricing.decimal_places", 4)

	v.SetDefault("grid.max_points", 200)
	v.SetDefault("grid.max_goroutines", 0)
	v.SetDefault("grid.spot_points", 10)
	v.SetDefault("grid.vol_points", 10)
	v.SetDefault("grid.time_points", 20)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.shards", 64)
	v.SetDefault("cache.max_entry_size", 16*1024)
	v.SetDefault("cache.hard_max_cache_size", 64)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.rate", 50)
	v.SetDefault("ratelimit.burst", 100)
	v.SetDefault("ratelimit.window", time.Second)
	v.SetDefault("ratelimit.max_keys", 100000)
	v.SetDefault("ratelimit.idle_ttl", 10*time.Minute)
	v.SetDefault("ratelimit.redis_addr", "")
	v.SetDefault("ratelimit.redis_password", "")
	v.SetDefault("ratelimit.redis_db", 0)

	v.SetDefault("idgen.type", "snowflake")
	v.SetDefault("idgen.machine_id", 1)
	v.SetDefault("idgen.start_time", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.sampler_ratio", 1.0)
}

// Default 返回仅包含默认值的配置，不读取文件与环境变量.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		panic(fmt.Sprintf("config: default values do not decode: %v", err))
	}
	return conf
}

// Load 读取 TOML 配置文件，叠加 BSM_ 前缀的环境变量并校验，随后监听文件变更.
// 环境变量以下划线代替点号，例如 BSM_PRICING_VOLATILITY。
func Load(path string, conf *Config) error {
	setDefaults(vInstance)
	vInstance.SetConfigFile(path)
	vInstance.SetConfigType("toml")

	vInstance.SetEnvPrefix("BSM")
	vInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vInstance.AutomaticEnv()

	if err := vInstance.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}

	if err := vInstance.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}

	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	vInstance.WatchConfig()
	vInstance.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)
		reload(vInstance, conf)
	})

	return nil
}

// reload 先解码到副本，校验通过后才覆盖当前配置并触发回调.
func reload(v *viper.Viper, conf *Config) {
	next := new(Config)
	if err := v.Unmarshal(next); err != nil {
		slog.Error("reload config unmarshal failed", "error", err)
		return
	}
	if err := validate.Struct(next); err != nil {
		slog.Error("reload config validation failed", "error", err)
		return
	}

	*conf = *next
	logging.SetLevel(conf.Log.Level)
	slog.Info("config hot-reloaded and validated successfully")

	hooksMu.Lock()
	hooks := append([]func(*Config){}, onReload...)
	hooksMu.Unlock()
	for _, hook := range hooks {
		hook(conf)
	}
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)

		return
	}

	var configMap map[string]any
	if unmarshalErr := json.Unmarshal(data, &configMap); unmarshalErr != nil {
		slog.Error("failed to unmarshal config for masking", "error", unmarshalErr)

		return
	}

	mask(configMap)

	maskedJSON, marshalErr := json.MarshalIndent(configMap, "  ", "  ")
	if marshalErr != nil {
		slog.Error("failed to marshal masked config", "error", marshalErr)

		return
	}

	slog.Info("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)

			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"

				break
			}
		}
	}
}

// GetViper 返回底层的 Viper 实例.
func GetViper() *viper.Viper {
	return vInstance
}
