package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the settings shared by every service binary. Fields that a
// given service does not use are simply ignored by it.
type Config struct {
	ServiceName     string        `mapstructure:"service_name"`
	Port            string        `mapstructure:"port"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Tracing TracingConfig `mapstructure:"tracing"`

	UserServiceURL  string `mapstructure:"user_service_url"`
	OrderServiceURL string `mapstructure:"order_service_url"`

	Gateway GatewayConfig `mapstructure:"gateway"`
	Orders  OrdersConfig  `mapstructure:"orders"`
	Traffic TrafficConfig `mapstructure:"traffic"`
}

type TracingConfig struct {
	// Exporter is one of "grpc", "http" or "none".
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type GatewayConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type OrdersConfig struct {
	UserLookupTimeout time.Duration `mapstructure:"user_lookup_timeout"`
	UnitPrice         float64       `mapstructure:"unit_price"`
	FailProduct       string        `mapstructure:"fail_product"`
}

// TrafficConfig drives the synthetic load generator.
type TrafficConfig struct {
	TargetURL string        `mapstructure:"target_url"`
	Interval  time.Duration `mapstructure:"interval"`
	// Workers is the number of concurrent workflows per round.
	Workers int `mapstructure:"workers"`
}

// Load reads configuration for the named service from defaults, an optional
// YAML file named by CONFIG_FILE, and environment variables, in increasing
// order of precedence. Nested keys map to env vars with "." replaced by "_",
// e.g. TRACING_EXPORTER or GATEWAY_TIMEOUT.
func Load(service, defaultPort string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service, defaultPort)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, service, port string) {
	v.SetDefault("service_name", service)
	v.SetDefault("port", port)
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("tracing.exporter", "grpc")
	v.SetDefault("tracing.endpoint", "jaeger:4317")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("user_service_url", "http://user-service:8001")
	v.SetDefault("order_service_url", "http://order-service:8002")

	v.SetDefault("gateway.timeout", 10*time.Second)

	v.SetDefault("orders.user_lookup_timeout", 5*time.Second)
	v.SetDefault("orders.unit_price", 99.99)
	v.SetDefault("orders.fail_product", "fail_product")

	v.SetDefault("traffic.target_url", "http://gateway:8080")
	v.SetDefault("traffic.interval", 5*time.Second)
	v.SetDefault("traffic.workers", 3)
}

func (c *Config) validate() error {
	switch c.Tracing.Exporter {
	case "grpc", "http", "none":
	default:
		return fmt.Errorf("unknown tracing exporter %q", c.Tracing.Exporter)
	}
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if c.Gateway.Timeout <= 0 || c.Orders.UserLookupTimeout <= 0 {
		return errors.New("outbound timeouts must be positive")
	}
	return nil
}

// Addr is the listen address for the service.
func (c *Config) Addr() string {
	return ":" + c.Port
}
