package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
	// BackendMemory keeps everything in process memory, seeded with a demo
	// catalog. Each binary gets its own copy.
	BackendMemory = "memory"
)

type Config struct {
	Service     string
	Port        string
	Environment string
	LogLevel    string
	LogFile     string
	Backend     string

	HTTP         HTTPConfig
	Inventory    SupabaseConfig // products, services, service_products
	POS          SupabaseConfig // orders + payment proof storage
	Appointments SupabaseConfig
	Storage      StorageConfig
	Database     DatabaseConfig
	Mongo        MongoConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Breaker      BreakerConfig
	Catalog      CatalogConfig
}

type HTTPConfig struct {
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

// SupabaseConfig addresses one Supabase project over its REST API.
type SupabaseConfig struct {
	URL string
	Key string
}

type StorageConfig struct {
	Bucket string
}

type DatabaseConfig struct {
	Host              string
	Port              string
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type MongoConfig struct {
	URI    string
	DBName string
}

type RedisConfig struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// KafkaConfig leaves event publishing disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

type CatalogConfig struct {
	ProductCategoryID int64
}

// Load reads the optional .env file and the environment. service selects the
// default port and which settings are required.
func Load(service string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetConfigName(".env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BACKEND", BackendREST)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("MAX_REQUEST_BODY_BYTES", 10<<20)
	v.SetDefault("SUPABASE_BUCKET", "payment_proof")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "caps")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("MIGRATIONS_PATH", "./internal/repository/postgres/migrations")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "cartdb")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("CART_CACHE_TTL", "15m")
	v.SetDefault("KAFKA_TOPIC", "caps-events")
	v.SetDefault("BREAKER_MAX_FAILURES", 5)
	v.SetDefault("BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("PRODUCTS_CATEGORY_ID", 3)
	v.SetDefault("PORT", defaultPort(service))

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Service:     service,
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFile:     strings.TrimSpace(v.GetString("LOG_FILE")),
		Backend:     strings.ToLower(strings.TrimSpace(v.GetString("BACKEND"))),
		HTTP: HTTPConfig{
			RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
			ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
			MaxRequestBodySize: v.GetInt64("MAX_REQUEST_BODY_BYTES"),
		},
		Inventory: SupabaseConfig{
			URL: strings.TrimRight(strings.TrimSpace(v.GetString("INVENTORY_SUPABASE_URL")), "/"),
			Key: strings.TrimSpace(v.GetString("INVENTORY_SUPABASE_KEY")),
		},
		POS: SupabaseConfig{
			URL: strings.TrimRight(strings.TrimSpace(v.GetString("POS_SUPABASE_URL")), "/"),
			Key: strings.TrimSpace(v.GetString("POS_SUPABASE_KEY")),
		},
		Appointments: SupabaseConfig{
			URL: strings.TrimRight(strings.TrimSpace(v.GetString("SUPABASE_URL")), "/"),
			Key: strings.TrimSpace(v.GetString("SUPABASE_KEY")),
		},
		Storage: StorageConfig{
			Bucket: v.GetString("SUPABASE_BUCKET"),
		},
		Database: DatabaseConfig{
			Host:              v.GetString("DB_HOST"),
			Port:              v.GetString("DB_PORT"),
			User:              v.GetString("DB_USER"),
			Password:          v.GetString("DB_PASSWORD"),
			DBName:            v.GetString("DB_NAME"),
			SSLMode:           v.GetString("DB_SSLMODE"),
			MigrationsDirPath: v.GetString("MIGRATIONS_PATH"),
		},
		Mongo: MongoConfig{
			URI:    v.GetString("MONGO_URI"),
			DBName: v.GetString("MONGO_DB_NAME"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			TTL:      v.GetDuration("CART_CACHE_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Breaker: BreakerConfig{
			MaxFailures: v.GetUint32("BREAKER_MAX_FAILURES"),
			OpenTimeout: v.GetDuration("BREAKER_OPEN_TIMEOUT"),
		},
		Catalog: CatalogConfig{
			ProductCategoryID: v.GetInt64("PRODUCTS_CATEGORY_ID"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendREST:
		for _, req := range c.requiredProjects() {
			if req.cfg.URL == "" || req.cfg.Key == "" {
				return fmt.Errorf("%s_URL and %s_KEY are required for the rest backend", req.env, req.env)
			}
		}
	case BackendPostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return fmt.Errorf("DB_HOST and DB_NAME are required for the postgres backend")
		}
	case BackendMemory:
		return nil
	default:
		return fmt.Errorf("unknown BACKEND %q (want %q, %q or %q)", c.Backend, BackendREST, BackendPostgres, BackendMemory)
	}
	if c.Service == "inventory" && c.POS.URL == "" {
		// payment proofs are always uploaded to the POS project's storage
		return fmt.Errorf("POS_SUPABASE_URL is required for payment proof storage")
	}
	return nil
}

type project struct {
	env string
	cfg SupabaseConfig
}

func (c *Config) requiredProjects() []project {
	switch c.Service {
	case "inventory":
		return []project{{"INVENTORY_SUPABASE", c.Inventory}, {"POS_SUPABASE", c.POS}}
	case "appointments":
		return []project{{"SUPABASE", c.Appointments}, {"INVENTORY_SUPABASE", c.Inventory}}
	case "sales":
		return []project{{"POS_SUPABASE", c.POS}}
	}
	return nil
}

func defaultPort(service string) string {
	switch service {
	case "appointments":
		return "5000"
	case "sales":
		return "8003"
	}
	return "8002"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
