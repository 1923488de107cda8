package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rocketscienceinc/bingo-backend/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	v := viper.New()
	v.SetEnvPrefix("BINGO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "bingo",
		Short:         "Party Bingo session backend",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&opts.ConfigPath, "config", "c", "config.yml", "path to the config file, empty for env only (env: BINGO_CONFIG)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn or error; overrides the config (env: BINGO_LOG_LEVEL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newCreateCommand(opts))
	cmd.AddCommand(newCardCommand(opts))
	cmd.AddCommand(newForgetCommand(opts))

	cmd.CompletionOptions.HiddenDefaultCmd = true

	return cmd
}

func (that *RootOptions) load() (*config.Config, error) {
	path := that.ConfigPath
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	conf, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if that.LogLevel != "" {
		conf.LogLevel = that.LogLevel
	}

	return conf, nil
}

// newLogger - builds the JSON logger for the configured level.
func newLogger(w io.Writer, conf *config.Config) *slog.Logger {
	var level slog.Level

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
