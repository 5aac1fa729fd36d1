// root.go: root command running the platform
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/agilira/termite"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "conf/platform.ini"

const banner = `
    \       /
     \ /^\ /
      (   )
        =         Termite Platform
   \__ === __/
   __  =-=  __
_/  _ ==-== _ \_
   |  =---=  |
  /   =---=   \
       ===
`

// runOptions holds the flags of the root command.
type runOptions struct {
	configFile string
	pluginsDir []string
	verbose    bool
	logLevel   string
	logFormat  string
	once       bool
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "termite",
		Short: "Run the Termite plugin platform",
		Long: `Termite discovers plugin bundles in the configured directories, resolves
their dependencies and drives every plugin through its lifecycle:
  discover -> install -> activate ... deactivate -> uninstall -> dispose

The platform runs until interrupted, or starts and shuts down at once
with --once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
		SilenceErrors:     true,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configFile, "config-file", "c", defaultConfigFile, "platform configuration file (ini, yaml, json or toml)")
	flags.StringSliceVarP(&opts.pluginsDir, "plugins-directory", "d", nil, "plugin directories, overriding the configuration file")
	flags.BoolVarP(&opts.verbose, "verbose", "V", false, "verbose output (debug logging)")
	flags.StringVar(&opts.logLevel, "loglevel", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "logformat", "", "log format: text or json")
	flags.BoolVar(&opts.once, "once", false, "start the platform and shut it down immediately")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func run(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	if opts.verbose {
		fmt.Fprint(stderr, banner)
	}
	logger := newLogger(stderr, cfg)

	platformOpts := []termite.PlatformOption{termite.WithLogger(logger)}
	if _, err := os.Stat(opts.configFile); err == nil {
		platformOpts = append(platformOpts, termite.WithConfigFile(opts.configFile))
	}
	platform, err := termite.NewPlatform(cfg, platformOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := platform.Start(ctx); err != nil {
		_ = platform.Shutdown(context.Background())
		return err
	}

	if !opts.once {
		logger.Info("Platform running, press Ctrl+C to stop")
		<-ctx.Done()
	}
	return platform.Shutdown(context.Background())
}

// loadConfig reads the configuration file and applies the flags on top of
// it. A missing file is only an error when --config-file was given.
func loadConfig(cmd *cobra.Command, opts *runOptions) (termite.Config, error) {
	var cfg termite.Config
	if _, err := os.Stat(opts.configFile); err == nil || cmd.Flags().Changed("config-file") {
		loaded, err := termite.LoadConfigFromFile(opts.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else {
		cfg.ApplyEnvironment()
	}

	if len(opts.pluginsDir) > 0 {
		cfg.PluginLocations = opts.pluginsDir
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func newLogger(w io.Writer, cfg termite.Config) termite.Logger {
	level, _ := termite.ParseLogLevel(cfg.LogLevel)
	return termite.NewSlogLogger(w, cfg.LogFormat, level)
}
