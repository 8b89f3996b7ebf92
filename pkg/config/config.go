package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
	Redis   RedisConfig   `mapstructure:"redis"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Log     LogConfig     `mapstructure:"log"`
	Shop    ShopConfig    `mapstructure:"shop"`
	Session SessionConfig `mapstructure:"session"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Payment PaymentConfig `mapstructure:"payment"`
	Mail    MailConfig    `mapstructure:"mail"`
}

// ServerConfig describes the gRPC health endpoint and the name the process
// registers under in etcd.
type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type GatewayConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	// PublicURL is the externally reachable base URL used to build payment
	// return and cancel links.
	PublicURL string `mapstructure:"public_url"`
}

type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// ShopConfig holds the pricing rules applied to every cart and order.
type ShopConfig struct {
	Name        string `mapstructure:"name"`
	Currency    string `mapstructure:"currency"`
	ShippingFee string `mapstructure:"shipping_fee"`
	TaxRate     string `mapstructure:"tax_rate"`
	// StrictAvailability rejects checkout when a cart line refers to a product
	// that is gone from the catalog or out of stock, instead of skipping it.
	StrictAvailability bool `mapstructure:"strict_availability"`

	shippingFee decimal.Decimal
	taxRate     decimal.Decimal
}

func (s ShopConfig) ShippingFeeAmount() decimal.Decimal { return s.shippingFee }
func (s ShopConfig) TaxRateValue() decimal.Decimal      { return s.taxRate }

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type PaymentConfig struct {
	Card   GatewayClientConfig `mapstructure:"card"`
	Wallet GatewayClientConfig `mapstructure:"wallet"`
}

// GatewayClientConfig configures an outbound payment provider client.
// When Service is set and etcd is enabled the base URL is resolved through
// service discovery, with BaseURL as the fallback.
type GatewayClientConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Service      string        `mapstructure:"service"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxFailures  uint32        `mapstructure:"max_failures"`
	OpenInterval time.Duration `mapstructure:"open_interval"`
}

type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "storefront")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50060)
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.public_url", "http://localhost:8080")
	v.SetDefault("etcd.dial_timeout", 5)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("mongodb.collection", "order_audit")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
	v.SetDefault("shop.name", "Storefront")
	v.SetDefault("shop.currency", "USD")
	v.SetDefault("shop.shipping_fee", "10.00")
	v.SetDefault("shop.tax_rate", "0.10")
	v.SetDefault("session.cookie_name", "storefront_session")
	v.SetDefault("session.ttl", 7*24*time.Hour)
	v.SetDefault("payment.card.timeout", 10*time.Second)
	v.SetDefault("payment.card.max_failures", 5)
	v.SetDefault("payment.card.open_interval", 30*time.Second)
	v.SetDefault("payment.wallet.timeout", 10*time.Second)
	v.SetDefault("payment.wallet.max_failures", 5)
	v.SetDefault("payment.wallet.open_interval", 30*time.Second)
	v.SetDefault("mail.port", 587)
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("storefront")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Shop.parse(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (s *ShopConfig) parse() error {
	fee, err := decimal.NewFromString(s.ShippingFee)
	if err != nil {
		return fmt.Errorf("invalid shop.shipping_fee %q: %w", s.ShippingFee, err)
	}
	rate, err := decimal.NewFromString(s.TaxRate)
	if err != nil {
		return fmt.Errorf("invalid shop.tax_rate %q: %w", s.TaxRate, err)
	}
	if fee.IsNegative() || rate.IsNegative() {
		return fmt.Errorf("shop.shipping_fee and shop.tax_rate must not be negative")
	}
	s.shippingFee = fee
	s.taxRate = rate
	return nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c *GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
