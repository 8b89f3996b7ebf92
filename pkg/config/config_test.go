package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "mysql:\n  host: db\n  port: 3306\n  username: u\n  password: p\n  database: shop\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Storefront", cfg.Shop.Name)
	assert.Equal(t, "USD", cfg.Shop.Currency)
	assert.True(t, cfg.Shop.ShippingFeeAmount().Equal(decimal.RequireFromString("10.00")))
	assert.True(t, cfg.Shop.TaxRateValue().Equal(decimal.RequireFromString("0.10")))
	assert.Equal(t, "storefront_session", cfg.Session.CookieName)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, "u:p@tcp(db:3306)/shop?charset=utf8mb4&parseTime=True&loc=Local", cfg.MySQL.DSN())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
shop:
  currency: EUR
  shipping_fee: "4.95"
  tax_rate: "0.21"
  strict_availability: true
payment:
  card:
    base_url: http://card.local
    timeout: 3s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.Shop.Currency)
	assert.True(t, cfg.Shop.StrictAvailability)
	assert.Equal(t, "4.95", cfg.Shop.ShippingFeeAmount().StringFixed(2))
	assert.Equal(t, "0.21", cfg.Shop.TaxRateValue().String())
	assert.Equal(t, "http://card.local", cfg.Payment.Card.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Payment.Card.Timeout)
	assert.Equal(t, uint32(5), cfg.Payment.Card.MaxFailures)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("STOREFRONT_SHOP_TAX_RATE", "0.2")
	path := writeConfig(t, "log:\n  level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.2", cfg.Shop.TaxRateValue().String())
}

func TestLoad_InvalidMoney(t *testing.T) {
	path := writeConfig(t, "shop:\n  shipping_fee: ten\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shop.shipping_fee")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Encoding: "console", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
