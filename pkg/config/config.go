package config

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shubham-shewale/quote-stream/pkg/codec"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Codec     CodecConfig     `mapstructure:"codec"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"` // lifetime of a quote snapshot
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
}

type CodecConfig struct {
	Name string `mapstructure:"name"` // "json" or "msgpack"
}

type GeneratorConfig struct {
	Companies  []string           `mapstructure:"companies"`
	BasePrices map[string]float64 `mapstructure:"base_prices"`
	Interval   time.Duration      `mapstructure:"interval"`
	MaxStep    float64            `mapstructure:"max_step"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
	QueueSize  int `mapstructure:"queue_size"`
}

type GatewayConfig struct {
	ValidTickers []string `mapstructure:"valid_tickers"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// .env is optional; real env vars always win
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "kafka.group_id" -> "KAFKA_GROUP_ID"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not reach keys during Unmarshal
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.encoding")
	bindEnv(v, "redis.addr", "redis.password", "redis.db", "redis.ttl")
	bindEnv(v, "kafka.brokers", "kafka.topic", "kafka.group_id", "kafka.partitions")
	bindEnv(v, "codec.name")
	bindEnv(v, "generator.companies", "generator.interval", "generator.max_step")
	bindEnv(v, "processor.num_workers", "processor.queue_size")
	bindEnv(v, "gateway.valid_tickers")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// viper lower-cases map keys; companies are upper-case everywhere else
	prices := make(map[string]float64, len(cfg.Generator.BasePrices))
	for company, p := range cfg.Generator.BasePrices {
		prices[strings.ToUpper(company)] = p
	}
	cfg.Generator.BasePrices = prices
	cfg.Generator.Companies = upperAll(cfg.Generator.Companies)
	cfg.Gateway.ValidTickers = upperAll(cfg.Gateway.ValidTickers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func upperAll(companies []string) []string {
	out := make([]string, 0, len(companies))
	for _, c := range companies {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "quotes")
	v.SetDefault("kafka.group_id", "quote-processor-group")
	v.SetDefault("kafka.partitions", 4)

	v.SetDefault("codec.name", "json")

	v.SetDefault("generator.companies", []string{"ACME", "GLOBEX", "INITECH", "UMBRELLA"})
	v.SetDefault("generator.base_prices", map[string]float64{
		"ACME": 100.0, "GLOBEX": 250.0, "INITECH": 42.0, "UMBRELLA": 310.0,
	})
	v.SetDefault("generator.interval", 100*time.Millisecond)
	v.SetDefault("generator.max_step", 5.0)

	v.SetDefault("processor.num_workers", 4)
	v.SetDefault("processor.queue_size", 100)

	v.SetDefault("gateway.valid_tickers", []string{"ACME", "GLOBEX", "INITECH", "UMBRELLA"})
}

// Validate rejects settings no binary can start with.
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers cannot be empty")
	}
	if c.Processor.NumWorkers <= 0 {
		return fmt.Errorf("processor.num_workers must be positive, got %d", c.Processor.NumWorkers)
	}
	if _, err := codec.ByName(c.Codec.Name); err != nil {
		return err
	}
	if !finite(c.Generator.MaxStep) {
		return fmt.Errorf("generator.max_step must be finite, got %v", c.Generator.MaxStep)
	}
	for company, p := range c.Generator.BasePrices {
		if !finite(p) {
			return fmt.Errorf("generator.base_prices.%s must be finite, got %v", company, p)
		}
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
