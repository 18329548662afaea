// Package command implements the spanlite command line tool.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	spanlite "github.com/spanlite/spanlite-go-sdk"
	"github.com/spanlite/spanlite-go-sdk/config"
)

const envPrefix = "SPANLITE"

// app holds state shared by subcommands, filled in by the root pre-run hook.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
	pool   config.SessionPool
	runner config.Runner
}

// Root returns the spanlite command with all subcommands.
func Root() *cobra.Command {
	return newApp().root()
}

func newApp() *app {
	return &app{v: viper.New()}
}

func (a *app) root() *cobra.Command {
	root := &cobra.Command{
		Use:   "spanlite",
		Short: "Run SQL against a database through the spanlite driver",
		Long: `spanlite runs SQL in retried transactions over a session pool.

Configuration is read from the file given by --config-file, from
SPANLITE_* environment variables (SPANLITE_SESSION_POOL_MAX and so on)
and from flags, later sources overriding earlier ones.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			return a.init(cmd.Flags())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("config-file", "", "path to a configuration file (yaml, json or toml)")
	flags.String("endpoint", "localhost:9010", "address of the database server")
	flags.String("database", "", "database in form projects/<p>/instances/<i>/databases/<d>")
	flags.Bool("insecure", false, "connect without TLS")
	flags.Bool("multiplexed", false, "share one multiplexed session instead of a session pool")
	flags.Duration("timeout", config.DefaultTransactionTimeout, "bound of all attempts of one transaction")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	_ = a.v.BindPFlag("endpoint", flags.Lookup("endpoint"))
	_ = a.v.BindPFlag("database", flags.Lookup("database"))
	_ = a.v.BindPFlag("insecure", flags.Lookup("insecure"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag(config.KeySessionPool+".multiplexed", flags.Lookup("multiplexed"))
	_ = a.v.BindPFlag(config.KeyRunner+".timeout", flags.Lookup("timeout"))

	root.AddCommand(
		queryCommand(a),
		execCommand(a),
	)

	return root
}

func (a *app) init(flags *pflag.FlagSet) (err error) {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if path, _ := flags.GetString("config-file"); path != "" {
		a.v.SetConfigFile(path)
		if err = a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	a.pool, a.runner, err = config.Load(a.v)
	if err != nil {
		return err
	}

	a.logger, err = newLogger(a.v.GetString("log_level"))
	if err != nil {
		return err
	}

	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	return cfg.Build()
}

// open dials the server and returns a driver over the connection. close
// closes both.
func (a *app) open(ctx context.Context) (_ *spanlite.Driver, close func(), err error) {
	database := a.v.GetString("database")
	if database == "" {
		return nil, nil, fmt.Errorf("database is not set")
	}
	cc, err := dial(a.v.GetString("endpoint"), a.v.GetBool("insecure"), a.logger)
	if err != nil {
		return nil, nil, err
	}
	d, err := spanlite.Open(ctx, cc, database,
		spanlite.WithSessionPool(a.pool),
		spanlite.WithTransactionTimeout(a.runner.Timeout),
		spanlite.WithLogger(a.logger),
	)
	if err != nil {
		_ = cc.Close()

		return nil, nil, err
	}

	return d, func() {
		if err := d.Close(context.WithoutCancel(ctx)); err != nil {
			a.logger.Warn("close driver failed", zap.Error(err))
		}
		_ = cc.Close()
	}, nil
}
