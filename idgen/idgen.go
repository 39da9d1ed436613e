// Package idgen 分布式唯一 ID 生成器，用于请求 ID.
// 支持 Snowflake 和 Sonyflake 两种算法，可通过配置选择.
package idgen

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sony/sonyflake"
)

var (
	// ErrUnsupportedType 不支持的 ID 生成器类型.
	ErrUnsupportedType = errors.New("unsupported id generator type")
	// ErrParseTime 解析时间失败.
	ErrParseTime = errors.New("failed to parse start time")
	// ErrInvalidMachineID 错误的机器 ID.
	ErrInvalidMachineID = errors.New("machine_id out of range")
)

const maxRetries = 3

// Config 生成器参数. StartTime 格式为 2006-01-02.
type Config struct {
	Type      string // snowflake（默认）或 sonyflake
	MachineID int64
	StartTime string
}

// Generator 定义 ID 生成器接口.
type Generator interface {
	Generate() int64
}

// SnowflakeGenerator 每毫秒可生成 4096 个 ID，支持 1024 个节点.
type SnowflakeGenerator struct {
	node *snowflake.Node
}

// NewSnowflakeGenerator 创建一个新的 SnowflakeGenerator.
func NewSnowflakeGenerator(cfg Config) (*SnowflakeGenerator, error) {
	if cfg.MachineID < 0 || cfg.MachineID > 1023 {
		return nil, ErrInvalidMachineID
	}
	if cfg.StartTime != "" {
		st, err := time.Parse("2006-01-02", cfg.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseTime, err)
		}
		snowflake.Epoch = st.UnixMilli()
	}

	node, err := snowflake.NewNode(cfg.MachineID)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}
	slog.Debug("snowflake generator initialized", "machine_id", cfg.MachineID, "epoch", snowflake.Epoch)
	return &SnowflakeGenerator{node: node}, nil
}

// Generate 生成一个新的 ID.
func (g *SnowflakeGenerator) Generate() int64 {
	return g.node.Generate().Int64()
}

// SonyflakeGenerator 每 10 毫秒可生成 256 个 ID，支持 65536 个节点.
type SonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflakeGenerator 创建一个新的 SonyflakeGenerator.
// 机器 ID 取自配置，不依赖私有网卡地址.
func NewSonyflakeGenerator(cfg Config) (*SonyflakeGenerator, error) {
	if cfg.MachineID < 0 || cfg.MachineID > 65535 {
		return nil, ErrInvalidMachineID
	}
	startTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if cfg.StartTime != "" {
		st, err := time.Parse("2006-01-02", cfg.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseTime, err)
		}
		startTime = st
	}

	mid := uint16(cfg.MachineID)
	sf, err := sonyflake.New(sonyflake.Settings{
		StartTime: startTime,
		MachineID: func() (uint16, error) { return mid, nil },
	})
	if err != nil {
		return nil, fmt.Errorf("create sonyflake: %w", err)
	}
	slog.Debug("sonyflake generator initialized", "machine_id", cfg.MachineID, "start_time", startTime)
	return &SonyflakeGenerator{sf: sf}, nil
}

// Generate 生成一个新的 ID，连续失败时返回 0.
func (g *SonyflakeGenerator) Generate() int64 {
	for i := range maxRetries {
		id, err := g.sf.NextID()
		if err == nil {
			return int64(id & 0x7FFFFFFFFFFFFFFF)
		}
		slog.Warn("sonyflake generator failed, retrying", "retry", i+1, "error", err)
		time.Sleep(10 * time.Millisecond)
	}
	slog.Error("sonyflake generator failed after multiple retries")
	return 0
}

// NewGenerator 根据配置创建对应类型的 ID 生成器.
func NewGenerator(cfg Config) (Generator, error) {
	switch cfg.Type {
	case "sonyflake":
		return NewSonyflakeGenerator(cfg)
	case "snowflake", "":
		return NewSnowflakeGenerator(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

var (
	mu               sync.RWMutex
	defaultGenerator Generator
)

// Init 设置全局默认生成器.
func Init(cfg Config) error {
	g, err := NewGenerator(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	defaultGenerator = g
	mu.Unlock()
	return nil
}

// Default 返回全局默认生成器，未初始化时使用机器 ID 1 的 Snowflake.
func Default() Generator {
	mu.RLock()
	g := defaultGenerator
	mu.RUnlock()
	if g != nil {
		return g
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultGenerator == nil {
		sg, err := NewSnowflakeGenerator(Config{MachineID: 1})
		if err != nil {
			panic(fmt.Errorf("failed to auto-initialize default id generator: %w", err))
		}
		defaultGenerator = sg
	}
	return defaultGenerator
}

// GenIDString 生成十进制字符串形式的唯一 ID.
func GenIDString() string {
	return strconv.FormatInt(Default().Generate(), 10)
}
