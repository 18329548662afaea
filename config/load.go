package config

import (
	"github.com/spf13/viper"

	"github.com/spanlite/spanlite-go-sdk/internal/xerrors"
)

const (
	KeySessionPool = "session_pool"
	KeyRunner      = "runner"
)

// SetDefaults registers default values of all keys in v so that they are
// visible to environment variable lookup and unmarshaling.
func SetDefaults(v *viper.Viper) {
	pool := Default()
	v.SetDefault(KeySessionPool+".min", pool.Min)
	v.SetDefault(KeySessionPool+".max", pool.Max)
	v.SetDefault(KeySessionPool+".inc_step", pool.IncStep)
	v.SetDefault(KeySessionPool+".idles_after", pool.IdlesAfter)
	v.SetDefault(KeySessionPool+".keep_alive", pool.KeepAlive)
	v.SetDefault(KeySessionPool+".acquire_timeout", pool.AcquireTimeout)
	v.SetDefault(KeySessionPool+".concurrency", pool.Concurrency)
	v.SetDefault(KeySessionPool+".write_session_fraction", pool.WriteSessionFraction)
	v.SetDefault(KeySessionPool+".close_inactive_transactions_after", pool.CloseInactiveTransactionsAfter)
	v.SetDefault(KeySessionPool+".fail", pool.Fail)
	v.SetDefault(KeySessionPool+".maintenance_interval", pool.MaintenanceInterval)
	v.SetDefault(KeySessionPool+".create_timeout", pool.CreateTimeout)
	v.SetDefault(KeySessionPool+".delete_timeout", pool.DeleteTimeout)
	v.SetDefault(KeySessionPool+".ping_timeout", pool.PingTimeout)
	v.SetDefault(KeySessionPool+".multiplexed", pool.Multiplexed)
	v.SetDefault(KeySessionPool+".multiplexed_refresh", pool.MultiplexedRefresh)
	v.SetDefault(KeyRunner+".timeout", DefaultRunner().Timeout)
}

// Load decodes and validates session pool and runner configuration from v.
func Load(v *viper.Viper) (SessionPool, Runner, error) {
	SetDefaults(v)

	var settings struct {
		SessionPool SessionPool `mapstructure:"session_pool"`
		Runner      Runner      `mapstructure:"runner"`
	}
	if err := v.Unmarshal(&settings); err != nil {
		return settings.SessionPool, settings.Runner, xerrors.WithStackTrace(err)
	}
	pool, runner := settings.SessionPool, settings.Runner
	if err := pool.Validate(); err != nil {
		return pool, runner, xerrors.WithStackTrace(err)
	}
	if err := runner.Validate(); err != nil {
		return pool, runner, xerrors.WithStackTrace(err)
	}

	return pool, runner, nil
}
