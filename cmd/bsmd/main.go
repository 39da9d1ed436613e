// Command bsmd 提供 Black-Scholes-Merton 报价、希腊字母热力图与期限序列的 HTTP 服务。
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/wyfcoding/bsm/api"
	"github.com/wyfcoding/bsm/app"
	"github.com/wyfcoding/bsm/breaker"
	"github.com/wyfcoding/bsm/cache"
	"github.com/wyfcoding/bsm/config"
	"github.com/wyfcoding/bsm/grid"
	"github.com/wyfcoding/bsm/health"
	"github.com/wyfcoding/bsm/idgen"
	"github.com/wyfcoding/bsm/limiter"
	"github.com/wyfcoding/bsm/logging"
	"github.com/wyfcoding/bsm/metrics"
	"github.com/wyfcoding/bsm/pricing"
	"github.com/wyfcoding/bsm/server"
	"github.com/wyfcoding/bsm/tracing"
)

// version 由构建时 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	configPath := flag.String("config", "configs/bsm.toml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("bsmd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	conf := new(config.Config)
	if err := config.Load(configPath, conf); err != nil {
		return err
	}

	logging.InitLogger(logging.Config{
		Service:    conf.Server.Name,
		Module:     "bsmd",
		Level:      conf.Log.Level,
		Format:     conf.Log.Format,
		File:       conf.Log.File,
		MaxSize:    conf.Log.MaxSize,
		MaxBackups: conf.Log.MaxBackups,
		MaxAge:     conf.Log.MaxAge,
		Compress:   conf.Log.Compress,
	})
	logger := logging.Default()
	config.PrintWithMask(conf)

	if conf.Server.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := idgen.Init(idgen.Config{
		Type:      conf.IDGen.Type,
		MachineID: conf.IDGen.MachineID,
		StartTime: conf.IDGen.StartTime,
	}); err != nil {
		return err
	}

	ctx := context.Background()
	var opts []app.Option

	m := metrics.NewMetrics(conf.Server.Name)
	m.RegisterBuildInfo(conf.Server.Name, version)

	serviceName := ""
	if conf.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(ctx, tracing.Config{
			ServiceName:  conf.Server.Name,
			Version:      version,
			OTLPEndpoint: conf.Tracing.OTLPEndpoint,
			SamplerRatio: conf.Tracing.SamplerRatio,
		})
		if err != nil {
			return err
		}
		serviceName = conf.Server.Name
		opts = append(opts, app.WithCleanup(func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Error("failed to shutdown tracer", "error", err)
			}
		}))
	}

	evaluator := grid.NewEvaluator(
		grid.WithLogger(logger.WithModule("grid").Logger),
		grid.WithMetrics(m),
		grid.WithMaxGoroutines(conf.Grid.MaxGoroutines),
		grid.WithMaxPoints(conf.Grid.MaxPoints),
	)

	checkers := make(map[string]health.Checker)

	var surfaceCache cache.Cache
	if conf.Cache.Enabled {
		bc, err := cache.NewBigCache(ctx, cache.Options{
			TTL:              conf.Cache.TTL,
			Shards:           conf.Cache.Shards,
			MaxEntrySize:     conf.Cache.MaxEntrySize,
			HardMaxCacheSize: conf.Cache.HardMaxCacheSize,
			Metrics:          m,
		})
		if err != nil {
			return err
		}
		surfaceCache = bc
		checkers["cache"] = health.CacheChecker(bc)
		opts = append(opts, app.WithCleanup(func() { _ = bc.Close() }))
	}

	var lim limiter.Limiter
	if conf.RateLimit.Enabled && conf.RateLimit.Rate > 0 {
		if conf.RateLimit.RedisAddr == "" {
			lim = newLocalLimiter(conf.RateLimit)
		} else {
			client := redis.NewClient(&redis.Options{
				Addr:     conf.RateLimit.RedisAddr,
				Password: conf.RateLimit.RedisPassword,
				DB:       conf.RateLimit.RedisDB,
			})
			cb := breaker.NewBreaker(breaker.Settings{
				Name:    "ratelimit-redis",
				Timeout: 10 * time.Second,
				Logger:  logger.WithModule("breaker").Logger,
				Metrics: m,
			})
			lim = limiter.NewRedisLimiter(client, conf.RateLimit.Rate, window(conf.RateLimit), limiter.WithBreaker(cb))
			checkers["redis"] = health.RedisChecker(client)
			opts = append(opts, app.WithCleanup(func() { _ = client.Close() }))
		}
	}

	handler := api.NewHandler(api.Options{
		Defaults:      pricingDefaults(conf),
		DecimalPlaces: conf.Pricing.DecimalPlaces,
		Axes:          api.AxisSizes{Spot: conf.Grid.SpotPoints, Vol: conf.Grid.VolPoints, Time: conf.Grid.TimePoints},
		Evaluator:     evaluator,
		Cache:         surfaceCache,
		CacheTTL:      conf.Cache.TTL,
		SweepTimeout:  conf.Server.HTTP.WriteTimeout,
		Metrics:       m,
		Logger:        logger.WithModule("api").Logger,
		Version:       version,
		Checkers:      checkers,
	})
	config.RegisterReloadHook(func(c *config.Config) {
		p := pricingDefaults(c)
		if err := p.Validate(); err != nil {
			logger.Warn("reloaded pricing defaults rejected", "error", err)
			return
		}
		handler.SetDefaults(p)
		logger.Info("pricing defaults reloaded", "params", p)
	})

	metricsPath := ""
	if conf.Metrics.Enabled {
		metricsPath = conf.Metrics.Path
	}
	router := api.NewRouter(handler, api.RouterOptions{
		ServiceName:    serviceName,
		Logger:         logger.WithModule("http").Logger,
		Metrics:        m,
		MetricsPath:    metricsPath,
		Limiter:        lim,
		MaxBodyBytes:   conf.Server.HTTP.MaxBodyBytes,
		RequestTimeout: conf.Server.HTTP.WriteTimeout,
		SlowThreshold:  conf.Log.SlowThreshold,
	})

	addr := net.JoinHostPort(conf.Server.HTTP.Addr, strconv.Itoa(conf.Server.HTTP.Port))
	srv := server.NewGinServer(router, addr, logger.Logger, server.Options{
		ReadTimeout:       conf.Server.HTTP.ReadTimeout,
		ReadHeaderTimeout: conf.Server.HTTP.ReadHeaderTimeout,
		WriteTimeout:      conf.Server.HTTP.WriteTimeout,
		IdleTimeout:       conf.Server.HTTP.IdleTimeout,
		ShutdownTimeout:   conf.Server.HTTP.ShutdownTimeout,
	})
	opts = append(opts, app.WithServer(srv), app.WithShutdownTimeout(conf.Server.HTTP.ShutdownTimeout))

	return app.New(conf.Server.Name, logger.Logger, opts...).Run()
}

func pricingDefaults(c *config.Config) pricing.Params {
	return pricing.Params{
		Spot:       c.Pricing.Spot,
		Strike:     c.Pricing.Strike,
		Rate:       c.Pricing.Rate,
		Time:       c.Pricing.Time,
		Volatility: c.Pricing.Volatility,
	}
}

func window(c config.RateLimitConfig) time.Duration {
	if c.Window <= 0 {
		return time.Second
	}
	return c.Window
}

// newLocalLimiter 每个客户端在窗口内平均补充 Rate 个令牌，桶容量为 Burst。
func newLocalLimiter(c config.RateLimitConfig) *limiter.LocalLimiter {
	burst := c.Burst
	if burst <= 0 {
		burst = c.Rate
	}
	return limiter.NewLocalLimiter(rate.Limit(float64(c.Rate)/window(c).Seconds()), burst,
		limiter.WithMaxKeys(c.MaxKeys), limiter.WithIdleTTL(c.IdleTTL))
}
