package config

import (
	"errors"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sox-verified-go/accumulator"
	"sox-verified-go/circuit"
	"sox-verified-go/pkg/logger"
	"sox-verified-go/types"
)

const (
	EnvPrefix         = "SOX"
	DefaultConfigName = "soxctl"
	DefaultStoreDir   = ".sox"
)

// Config holds the settings shared by every soxctl command.
type Config struct {
	BlockSize         int    `mapstructure:"block_size"`
	StoreDir          string `mapstructure:"store_dir"`
	LogLevel          string `mapstructure:"log_level"`
	LogFormat         string `mapstructure:"log_format"`
	MetricsTextfile   string `mapstructure:"metrics_textfile"`
	ParallelThreshold int    `mapstructure:"parallel_threshold"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BlockSize:         circuit.DefaultBlockSize,
		StoreDir:          DefaultStoreDir,
		LogLevel:          "info",
		LogFormat:         "json",
		ParallelThreshold: accumulator.DefaultParallelThreshold,
	}
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("block_size", d.BlockSize)
	v.SetDefault("store_dir", d.StoreDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("metrics_textfile", d.MetricsTextfile)
	v.SetDefault("parallel_threshold", d.ParallelThreshold)
}

// RegisterFlags adds the persistent flags that override file and env values.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "config file (default ./soxctl.yaml)")
	fs.Int("block-size", d.BlockSize, "bytes per circuit block (multiple of 16, at most 64)")
	fs.String("store-dir", d.StoreDir, "artifact store directory")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("log-format", d.LogFormat, "log format (json or console)")
	fs.String("metrics-textfile", "", "write Prometheus metrics to this file on exit")
	fs.Int("parallel-threshold", d.ParallelThreshold, "leaf count above which tree hashing runs in parallel")
}

// BindFlags maps each flag in fs onto its config key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}

// Load reads path (or ./soxctl.yaml when path is empty and the file exists),
// then SOX_* environment variables, then bound flags.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no command could run with.
func (c Config) Validate() error {
	if err := circuit.ValidateBlockSize(c.BlockSize); err != nil {
		return err
	}
	if c.StoreDir == "" {
		return errorsmod.Wrap(types.ErrShapeMismatch, "store_dir must not be empty")
	}
	if c.ParallelThreshold < 1 {
		return errorsmod.Wrapf(types.ErrShapeMismatch, "parallel_threshold must be positive, got %d", c.ParallelThreshold)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return errorsmod.Wrapf(types.ErrShapeMismatch, "log_format %q", c.LogFormat)
	}
	return nil
}

// Logger builds the process logger for component.
func (c Config) Logger(component string) (*logger.Logger, error) {
	return logger.New(component, logger.Options{Level: c.LogLevel, Format: c.LogFormat})
}

// TreeOptions turns the tuning keys into accumulator options.
func (c Config) TreeOptions() []accumulator.Option {
	return []accumulator.Option{accumulator.WithParallelThreshold(c.ParallelThreshold)}
}
