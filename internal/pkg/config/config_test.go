package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
jwt:
  secret: "0123456789abcdef0123456789abcdef"
database:
  host: localhost
  user: postgres
  dbname: orders
inventory:
  hold_window: 10m
  max_stock: 5000
balance:
  min_credit: 100
  max_credit: 50000
  max_balance: 1000000
`

func TestLoad(t *testing.T) {
	t.Run("Durations and overrides decode from yaml", func(t *testing.T) {
		v := viper.New()
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(sampleYAML)))

		cfg, err := Load(v)

		require.NoError(t, err)
		assert.Equal(t, 10*time.Minute, cfg.Inventory.HoldWindow)
		assert.Equal(t, int64(5000), cfg.Inventory.MaxStock)
		assert.Equal(t, 3*time.Second, cfg.Database.LockTimeout)
		assert.Equal(t, 20*time.Millisecond, cfg.Coupon.ClaimBackoff)
		assert.Equal(t, int64(100), cfg.Balance.MinCredit)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Defaults alone fail validation without secrets", func(t *testing.T) {
		cfg, err := Load(viper.New())

		require.NoError(t, err)
		assert.Equal(t, 30*time.Minute, cfg.Inventory.HoldWindow)
		assert.Error(t, cfg.Validate())
	})

	t.Run("Inverted credit bounds are rejected", func(t *testing.T) {
		v := viper.New()
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(sampleYAML)))
		cfg, err := Load(v)
		require.NoError(t, err)

		cfg.Balance.MaxCredit = 10

		assert.EqualError(t, cfg.Validate(), "balance credit bounds are invalid")
	})
}
