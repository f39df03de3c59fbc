// Package main provides the VIN engine CLI entrypoint.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vindiesel/vin-engine/internal/cache"
	"github.com/vindiesel/vin-engine/internal/config"
	"github.com/vindiesel/vin-engine/internal/enrichment"
	"github.com/vindiesel/vin-engine/internal/nhtsa"
	"github.com/vindiesel/vin-engine/internal/observability"
	"github.com/vindiesel/vin-engine/pkg/vin"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitError asks main to exit with code after the command already reported
// the problem to the user.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func failed(msg string) error { return &exitError{code: 1, msg: msg} }

// app carries global flags and the state built from them.
type app struct {
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool
	offline    bool

	cfg    *config.Config
	logger *observability.Logger
	ui     *UI

	// newGateway builds the remote gateway; replaced in tests.
	newGateway func(cfg *config.Config, logger *observability.Logger) vin.Gateway
	service    *enrichment.Service
	closers    []func() error
}

func newRootCmd() *cobra.Command {
	return newRootCmdFor(&app{newGateway: defaultGateway})
}

func newRootCmdFor(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vin-cli",
		Short: "Validate, decode and extract Vehicle Identification Numbers",
		Long: `vin-cli checks and decodes 17-character VINs.

Use this tool to:
- Clean up typed or scanned VIN text
- Validate VINs and verify the check digit
- Decode year, make and model (locally or via NHTSA vPIC)
- Find VINs in OCR text or photographs
- Decode a file of VINs in bulk

All commands support --json for automation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a.cfg, err = config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level := "warn"
			if a.verbose {
				level = "debug"
			}
			a.logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      "console",
				Output:      cmd.ErrOrStderr(),
				ServiceName: "vin-cli",
			})
			a.ui = NewUI(cmd.OutOrStdout(), cmd.ErrOrStderr(), a.outputJSON, a.noColor)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&a.outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&a.offline, "offline", false, "never contact the remote decode service")

	rootCmd.AddCommand(newNormalizeCmd(a))
	rootCmd.AddCommand(newValidateCmd(a))
	rootCmd.AddCommand(newDecodeCmd(a))
	rootCmd.AddCommand(newExtractCmd(a))
	rootCmd.AddCommand(newScanCmd(a))
	rootCmd.AddCommand(newBatchCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// enrichmentService lazily builds the decode service with cache and gateway.
func (a *app) enrichmentService() (*enrichment.Service, error) {
	if a.service != nil {
		return a.service, nil
	}

	var gateway vin.Gateway
	if !a.offline && a.cfg.Gateway.Enabled {
		gateway = a.newGateway(a.cfg, a.logger)
	}

	var decodeCache cache.Client
	if gateway != nil {
		c, err := cache.New(a.cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("open decode cache: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		decodeCache = c
	}

	a.service = enrichment.NewService(enrichment.Config{
		RemoteTimeout: a.cfg.Enrichment.RemoteTimeout,
		CacheTTL:      a.cfg.Cache.TTL,
	}, gateway, decodeCache, enrichment.WithLogger(a.logger))
	return a.service, nil
}

func (a *app) close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func defaultGateway(cfg *config.Config, logger *observability.Logger) vin.Gateway {
	return nhtsa.NewClient(nhtsa.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		Timeout:    cfg.Gateway.Timeout,
		UserAgent:  cfg.Gateway.UserAgent,
		MaxRetries: cfg.Gateway.MaxRetries,
	}, nhtsa.WithLogger(logger))
}
