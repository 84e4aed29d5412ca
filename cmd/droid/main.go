package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gwillem/droid/pkg/droid"
)

type Options struct {
	Config  string `short:"c" long:"config" description:"Config file (default: droid.json if present)"`
	Verbose bool   `short:"v" long:"verbose" description:"Debug logging"`

	Selftest   SelftestCommand   `command:"selftest" alias:"test" description:"Run the power-on self-test"`
	Setup      SetupCommand      `command:"setup" description:"Find the servo bus and write the config file"`
	InitConfig InitConfigCommand `command:"init-config" description:"Write a config file with default limits"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	parser.LongDescription = "droid - power-on self-test and motor wiring diagnostics"

	_, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		}
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}

// newLogger logs human-readable lines to stderr so stdout stays parseable.
func newLogger(verbose bool) (*zap.Logger, error) {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	return cfg.Build()
}

func loadConfig() (*droid.Config, error) {
	if opts.Config != "" {
		return droid.LoadConfigFrom(opts.Config)
	}
	return droid.LoadConfig()
}

func configPath() string {
	if opts.Config != "" {
		return opts.Config
	}
	return droid.DefaultConfigFile
}

type InitConfigCommand struct {
	Force bool `short:"f" long:"force" description:"Overwrite an existing file"`
}

func (c *InitConfigCommand) Execute(args []string) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := droid.DefaultConfig().SaveTo(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Println(successStyle.Render("Wrote " + path))
	return nil
}
