package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ZKAttest-Chain/internal/auth"
	"ZKAttest-Chain/pkg/logger"
)

// EnvConfigPath 是指定配置文件路径的环境变量。
const EnvConfigPath = "ATTESTD_CONFIG"

// DefaultConfigPath 是未设置环境变量时使用的配置文件。
const DefaultConfigPath = "configs/attestd.json"

// Config 描述了 attestd 在启动阶段需要加载的核心配置。
type Config struct {
	Server      ServerConfig      `json:"server"`
	Auth        auth.Config       `json:"auth"`
	Storage     StorageConfig     `json:"storage"`
	Queue       QueueConfig       `json:"queue"`
	Prover      ProverConfig      `json:"prover"`
	PriceFeed   PriceFeedConfig   `json:"price_feed"`
	Attestation AttestationConfig `json:"attestation"`
	Verifier    VerifierConfig    `json:"verifier"`
	Fixtures    FixturesConfig    `json:"fixtures"`
	Logging     logger.Config     `json:"logging"`
	Alerting    AlertingConfig    `json:"alerting"`
	Metrics     MetricsConfig     `json:"metrics"`
	Runtime     RuntimeConfig     `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address                string `json:"address"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
	MaxBodyBytes           int64  `json:"max_body_bytes"`
}

// ShutdownTimeout 返回优雅退出的等待时间。
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// StorageConfig 描述证明任务的持久化后端。
type StorageConfig struct {
	JobStore JobStoreConfig `json:"job_store"`
}

// JobStoreConfig 支持 memory 与 mysql 两种驱动。
type JobStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
	AutoMigrate            bool   `json:"auto_migrate"`
}

// QueueConfig 描述证明任务队列，支持 memory、redis 与 rabbitmq。
type QueueConfig struct {
	Driver   string         `json:"driver"`
	Buffer   int            `json:"buffer"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 是 Redis 连接参数。
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Key      string `json:"key"`
}

// RabbitMQConfig 是 RabbitMQ 连接参数。
type RabbitMQConfig struct {
	URL      string `json:"url"`
	Queue    string `json:"queue"`
	Prefetch int    `json:"prefetch"`
}

// ProverConfig 选择证明协作方的实现。
type ProverConfig struct {
	Driver         string `json:"driver"`
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	System         string `json:"system"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Workers        int    `json:"workers"`
	MaxRetries     int    `json:"max_retries"`
	KeyCacheSize   int    `json:"key_cache_size"`
}

// Timeout 返回单次证明请求的超时时间。
func (p ProverConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// PriceFeedConfig 控制抵押请求缺省价格时的 BTC/USD 来源。
type PriceFeedConfig struct {
	Provider        string      `json:"provider"`
	BaseURL         string      `json:"base_url"`
	APIKey          string      `json:"api_key"`
	StaticUnits     uint32      `json:"static_units"`
	TimeoutSeconds  int         `json:"timeout_seconds"`
	CacheTTLSeconds int         `json:"cache_ttl_seconds"`
	Cache           RedisConfig `json:"cache"`
}

// AttestationConfig 控制核心流水线。
type AttestationConfig struct {
	Encoding  string `json:"encoding"`
	KindsFile string `json:"kinds_file"`
}

// VerifierConfig 描述链上验证网关。
type VerifierConfig struct {
	Enabled        bool   `json:"enabled"`
	ChainsFile     string `json:"chains_file"`
	Chain          string `json:"chain"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// FixturesConfig 控制是否为合约测试导出证明样例。
type FixturesConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir"`
}

// AlertingConfig 描述证明失败告警的投递目标，审计日志通道始终开启。
type AlertingConfig struct {
	Webhooks []WebhookConfig `json:"webhooks"`
}

// WebhookConfig 是单个 webhook 通知目标，format 取 webhook、slack 或 dingtalk。
type WebhookConfig struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// MetricsConfig 控制 Prometheus 指标端点。
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// 可覆盖配置文件中敏感字段的环境变量。
const (
	EnvMySQLDSN      = "ATTESTD_MYSQL_DSN"
	EnvProverAPIKey  = "ATTESTD_PROVER_API_KEY"
	EnvPriceAPIKey   = "ATTESTD_PRICE_API_KEY"
	EnvRedisPassword = "ATTESTD_REDIS_PASSWORD"
)

// LoadEnvFile 将 .env 文件中的变量载入进程环境，文件不存在时忽略。已存在的环境变量不会被覆盖。
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取 env 文件失败: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("解析 env 文件失败: %w", err)
	}
	return nil
}

// ResolvePath 返回环境变量指定的配置路径，未设置时返回默认值。
func ResolvePath() string {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return path
	}
	return DefaultConfigPath
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv(EnvMySQLDSN); ok {
		c.Storage.JobStore.DSN = value
	}
	if value, ok := os.LookupEnv(EnvProverAPIKey); ok {
		c.Prover.APIKey = value
	}
	if value, ok := os.LookupEnv(EnvPriceAPIKey); ok {
		c.PriceFeed.APIKey = value
	}
	if value, ok := os.LookupEnv(EnvRedisPassword); ok {
		c.Queue.Redis.Password = value
		c.PriceFeed.Cache.Password = value
	}
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = 5
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}

	if c.Storage.JobStore.Driver == "" {
		c.Storage.JobStore.Driver = "memory"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Buffer <= 0 {
		c.Queue.Buffer = 128
	}
	if c.Queue.Redis.Key == "" {
		c.Queue.Redis.Key = "attest:jobs"
	}
	if c.Queue.RabbitMQ.Queue == "" {
		c.Queue.RabbitMQ.Queue = "attest.jobs"
	}

	if c.Prover.Driver == "" {
		c.Prover.Driver = "mock"
	}
	if c.Prover.TimeoutSeconds <= 0 {
		c.Prover.TimeoutSeconds = 300
	}
	if c.Prover.Workers <= 0 {
		c.Prover.Workers = 2
	}
	if c.Prover.MaxRetries <= 0 {
		c.Prover.MaxRetries = 3
	}

	if c.PriceFeed.Provider == "" {
		c.PriceFeed.Provider = "coingecko"
	}
	if c.PriceFeed.TimeoutSeconds <= 0 {
		c.PriceFeed.TimeoutSeconds = 10
	}

	if c.Attestation.Encoding == "" {
		c.Attestation.Encoding = "packed"
	}
	c.Attestation.KindsFile = resolve(baseDir, c.Attestation.KindsFile, "kinds.yaml")

	if c.Verifier.ChainsFile != "" {
		c.Verifier.ChainsFile = resolve(baseDir, c.Verifier.ChainsFile, "")
	}
	if c.Verifier.TimeoutSeconds <= 0 {
		c.Verifier.TimeoutSeconds = 15
	}

	if c.Logging.Audit.Path != "" {
		c.Logging.Audit.Path = resolve(baseDir, c.Logging.Audit.Path, "")
	}
	for i, out := range c.Logging.OutputPaths {
		switch strings.ToLower(out) {
		case "", "stdout", "stderr":
		default:
			c.Logging.OutputPaths[i] = resolve(baseDir, out, "")
		}
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir, "data")
	if c.Fixtures.Dir == "" {
		c.Fixtures.Dir = filepath.Join(c.Runtime.DataDir, "fixtures")
	} else if !filepath.IsAbs(c.Fixtures.Dir) {
		c.Fixtures.Dir = filepath.Join(baseDir, c.Fixtures.Dir)
	}
}

func (c *Config) validate() error {
	switch c.Storage.JobStore.Driver {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Storage.JobStore.DSN) == "" {
			return errors.New("mysql 任务存储缺少 dsn")
		}
	default:
		return fmt.Errorf("不支持的任务存储驱动: %s", c.Storage.JobStore.Driver)
	}

	switch c.Queue.Driver {
	case "memory", "redis", "rabbitmq":
	default:
		return fmt.Errorf("不支持的队列驱动: %s", c.Queue.Driver)
	}

	switch c.Prover.Driver {
	case "mock":
	case "network":
		if strings.TrimSpace(c.Prover.Endpoint) == "" {
			return errors.New("network 证明器缺少 endpoint")
		}
	default:
		return fmt.Errorf("不支持的证明器驱动: %s", c.Prover.Driver)
	}

	switch c.PriceFeed.Provider {
	case "coingecko", "static", "none":
	default:
		return fmt.Errorf("不支持的价格源: %s", c.PriceFeed.Provider)
	}

	for i, hook := range c.Alerting.Webhooks {
		switch strings.ToLower(hook.Format) {
		case "", "webhook", "slack", "dingtalk":
		default:
			return fmt.Errorf("alerting.webhooks[%d] 使用了不支持的格式: %s", i, hook.Format)
		}
	}

	if c.Verifier.Enabled && (c.Verifier.ChainsFile == "" || c.Verifier.Chain == "") {
		return errors.New("启用链上验证时必须配置 chains_file 与 chain")
	}
	return nil
}

func resolve(baseDir, value, fallback string) string {
	if value == "" {
		value = fallback
	}
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(baseDir, value)
}
