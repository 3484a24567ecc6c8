package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	App       AppConfig       `mapstructure:"app"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Coupon    CouponConfig    `mapstructure:"coupon"`
	Balance   BalanceConfig   `mapstructure:"balance"`
	Order     OrderConfig     `mapstructure:"order"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
	// LockTimeout 行锁等待上限，超时转为可重试的 Busy 错误
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// InventoryConfig 库存与预占
type InventoryConfig struct {
	HoldWindow    time.Duration `mapstructure:"hold_window"` // 预占保留时长
	MaxStock      int64         `mapstructure:"max_stock"`   // 单 SKU 库存上限，防止运营误操作
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
}

// CouponConfig 优惠券发放
type CouponConfig struct {
	MaxTickets     int           `mapstructure:"max_tickets"`
	SeedBatch      int           `mapstructure:"seed_batch"`
	ClaimBackoff   time.Duration `mapstructure:"claim_backoff"`
	SoldOutTTL     time.Duration `mapstructure:"sold_out_ttl"`
	ExpireInterval time.Duration `mapstructure:"expire_interval"`
}

// BalanceConfig 余额，单位：分
type BalanceConfig struct {
	MinCredit  int64 `mapstructure:"min_credit"`
	MaxCredit  int64 `mapstructure:"max_credit"`
	MaxBalance int64 `mapstructure:"max_balance"`
}

type OrderConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type RateLimitConfig struct {
	ClaimQPS   float64 `mapstructure:"claim_qps"`
	ClaimBurst int     `mapstructure:"claim_burst"`
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	// JWT 配置验证
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	// 数据库配置验证
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	// Redis 配置验证
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if c.Inventory.HoldWindow <= 0 {
		return errors.New("inventory.hold_window must be positive")
	}
	if c.Inventory.MaxStock <= 0 {
		return errors.New("inventory.max_stock must be positive")
	}
	if c.Coupon.MaxTickets <= 0 {
		return errors.New("coupon.max_tickets must be positive")
	}
	if c.Balance.MinCredit <= 0 || c.Balance.MaxCredit < c.Balance.MinCredit {
		return errors.New("balance credit bounds are invalid")
	}
	if c.Balance.MaxBalance < c.Balance.MaxCredit {
		return errors.New("balance.max_balance must not be lower than balance.max_credit")
	}

	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("jwt.expire", 24)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)

	v.SetDefault("database.lock_timeout", "3s")
	v.SetDefault("inventory.hold_window", "30m")
	v.SetDefault("inventory.max_stock", 1000000)
	v.SetDefault("inventory.sweep_interval", "1m")
	v.SetDefault("inventory.sweep_batch", 500)
	v.SetDefault("coupon.max_tickets", 100000)
	v.SetDefault("coupon.seed_batch", 500)
	v.SetDefault("coupon.claim_backoff", "20ms")
	v.SetDefault("coupon.sold_out_ttl", "30s")
	v.SetDefault("coupon.expire_interval", "10m")
	v.SetDefault("balance.min_credit", 1)
	v.SetDefault("balance.max_credit", 10000000)
	v.SetDefault("balance.max_balance", 100000000)
	v.SetDefault("order.max_attempts", 3)
	v.SetDefault("order.retry_backoff", "50ms")
	v.SetDefault("ratelimit.claim_qps", 10000)
	v.SetDefault("ratelimit.claim_burst", 20000)
}

// Load 从指定 viper 实例解析配置，便于测试
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfig 加载配置
func LoadConfig() {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量
	v.AutomaticEnv()

	cfg, err := Load(v)
	if err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}
	GlobalConfig = cfg

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}
	if hold := os.Getenv("HOLD_WINDOW"); hold != "" {
		if d, err := time.ParseDuration(hold); err == nil {
			GlobalConfig.Inventory.HoldWindow = d
		}
	}

	// 验证配置
	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
