package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"loglevel"`
	Storage  struct {
		Type           string `mapstructure:"type"`
		Path           string `mapstructure:"path"`
		DataSourceName string `mapstructure:"dsn"`
	} `mapstructure:"storage"`
	S3 struct {
		Bucket string `mapstructure:"bucket"`
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"s3"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Client struct {
		BaseURL     string        `mapstructure:"base_url"`
		Timeout     time.Duration `mapstructure:"timeout"`
		Concurrency string        `mapstructure:"concurrency"`
		NoticeTTL   time.Duration `mapstructure:"notice_ttl"`
	} `mapstructure:"client"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":3002")
	v.SetDefault("loglevel", "info")
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.dsn", "slidedeck.db")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "documents/")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "slidedeck.documents")
	v.SetDefault("client.base_url", "http://localhost:3002")
	v.SetDefault("client.timeout", 10*time.Second)
	v.SetDefault("client.concurrency", "revision")
	v.SetDefault("client.notice_ttl", 1500*time.Millisecond)
}

// Load reads configuration from defaults, an optional config.yaml in the
// working directory or ./config, a .env file and the environment. The
// environment wins. Variable names follow the key with dots replaced by
// underscores (STORAGE_TYPE, CLIENT_TIMEOUT); the historical names
// LOCAL_STORAGE_PATH, DATA_SOURCE_NAME and S3_BUCKET_NAME are honoured.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"storage.path": "LOCAL_STORAGE_PATH",
		"storage.dsn":  "DATA_SOURCE_NAME",
		"s3.bucket":    "S3_BUCKET_NAME",
	} {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
