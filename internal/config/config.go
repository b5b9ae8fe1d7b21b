package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP    HTTPConfig    `yaml:"http"`
	WebRTC  WebRTCConfig  `yaml:"webrtc"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" env:"HTTP_ADDRESS" env-default:""`
	AllowedOrigins []string `yaml:"allowed_origins" env:"HTTP_ALLOWED_ORIGINS" env-separator:","`
	SecureCookie   bool     `yaml:"secure_cookie" env:"HTTP_SECURE_COOKIE"`
}

type WebRTCConfig struct {
	STUNServers    []string `yaml:"stun_servers" env:"WEBRTC_STUN_SERVERS" env-separator:","`
	TURNServer     string   `yaml:"turn_server" env:"WEBRTC_TURN_SERVER"`
	TURNUsername   string   `yaml:"turn_username" env:"WEBRTC_TURN_USERNAME"`
	TURNCredential string   `yaml:"turn_credential" env:"WEBRTC_TURN_CREDENTIAL"`
}

const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

type StorageConfig struct {
	Driver  string      `yaml:"driver" env:"STORAGE_DRIVER" env-default:"file"`
	DataDir string      `yaml:"data_dir" env:"STORAGE_DATA_DIR"`
	DSN     string      `yaml:"dsn" env:"STORAGE_DSN"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
}

type AuthConfig struct {
	SessionTTL      time.Duration `yaml:"session_ttl" env:"AUTH_SESSION_TTL"`
	SessionCacheTTL time.Duration `yaml:"session_cache_ttl" env:"AUTH_SESSION_CACHE_TTL"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"AUTH_RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"AUTH_RATE_LIMIT_BURST"`
	CompactionSpec  string        `yaml:"compaction_spec" env:"AUTH_COMPACTION_SPEC"`
}

type LogConfig struct {
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
}

func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		panic("config path is empty")
	}

	return MustLoadPath(configPath)
}

func MustLoadPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("cannot read config: " + err.Error())
	}

	cfg.setDefaults()

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "config/local.yaml"
	}

	return res
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageFile
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = "ringcall"
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = 30 * 24 * time.Hour
	}
	if c.Auth.SessionCacheTTL < 0 {
		c.Auth.SessionCacheTTL = 0
	}
	if c.Auth.RateLimitRPS == 0 {
		c.Auth.RateLimitRPS = 1
	}
	if c.Auth.RateLimitBurst <= 0 {
		c.Auth.RateLimitBurst = 5
	}
	if c.Auth.CompactionSpec == "" {
		c.Auth.CompactionSpec = "@hourly"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
}
