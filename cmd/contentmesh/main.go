// Package main provides the contentmesh binary entry point.
// Contentmesh serves fallback-aware content generation and intent parsing
// behind one of several deployment profiles.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/c360studio/contentmesh/config"
	"github.com/c360studio/contentmesh/envelope"
	"github.com/c360studio/contentmesh/gateway"
	"github.com/c360studio/contentmesh/task"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "contentmesh"

	shutdownTimeout = 10 * time.Second
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by the serve and dispatch commands.
type globalFlags struct {
	configPath string
	profile    string
	host       string
	port       int
	logLevel   string
}

func (f *globalFlags) overrides() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Profile: f.profile},
		Server:  config.ServerConfig{Host: f.host, Port: f.port},
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Fallback-aware content generation service",
		Long: `Contentmesh accepts loosely-typed generation requests, normalizes them,
asks the configured LLM provider once, and falls back to deterministic
local output whenever the provider is unavailable or misbehaves.

Profiles:
- mcp-manager: content generation routed by content_type
- content-router: task-specific generation paths
- intent-parser: workflow intent parsing`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVarP(&flags.profile, "profile", "p", "", "Deployment profile ("+strings.Join(gateway.ProfileNames(), ", ")+")")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.host, "host", "", "Listen host (overrides <PROFILE>_HOST)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "Listen port (overrides <PROFILE>_PORT)")

	cmd.AddCommand(dispatchCmd(flags))
	cmd.AddCommand(profilesCmd(flags))
	cmd.AddCommand(configCmd(flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func newLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func loadConfig(flags *globalFlags, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.NewLoader(logger).Load(flags.configPath, flags.overrides())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, flags *globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(flags.logLevel, os.Stderr)
	slog.SetDefault(logger)

	cfg, err := loadConfig(flags, logger)
	if err != nil {
		return err
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := app.Start(signalCtx); err != nil {
		app.Shutdown(shutdownTimeout)
		return err
	}

	slog.Info("Contentmesh ready",
		"version", Version,
		"profile", cfg.Service.Profile,
		"addr", app.Addr(),
		"provider", cfg.Provider.Name,
		"ai_available", app.AIAvailable())

	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case err := <-app.Errors():
		slog.Error("HTTP server failed", "error", err)
		app.Shutdown(shutdownTimeout)
		return err
	}

	app.Shutdown(shutdownTimeout)
	slog.Info("Contentmesh shutdown complete")
	return nil
}

func dispatchCmd(flags *globalFlags) *cobra.Command {
	var (
		kind string
		file string
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch one JSON payload and print the response envelope",
		Long: `Dispatch reads a JSON object from --file (or stdin) and runs it through
the same normalize, resolve and assemble chain as the HTTP service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			routeKind := task.ParseKind(kind)
			if routeKind == "" {
				return fmt.Errorf("unknown kind %q", kind)
			}

			in := cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open payload: %w", err)
				}
				defer f.Close()
				in = f
			}

			var payload map[string]any
			if err := json.NewDecoder(in).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("decode payload: %w", err)
			}

			logger := newLogger(flags.logLevel, cmd.ErrOrStderr())
			cfg, err := loadConfig(flags, logger)
			if err != nil {
				return err
			}
			app, err := NewApp(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Shutdown(shutdownTimeout)

			env, err := app.DispatchOnce(cmd.Context(), routeKind, payload)
			if err != nil {
				return err
			}
			return printEnvelope(cmd.OutOrStdout(), env)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", string(task.KindAuto), "Task kind ("+kindNames()+")")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Payload file (default: stdin)")
	return cmd
}

func printEnvelope(w io.Writer, env *envelope.Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if env.Status == envelope.StatusError {
		return fmt.Errorf("dispatch failed: %s", env.Error)
	}
	return nil
}

func kindNames() string {
	names := []string{string(task.KindAuto)}
	for _, k := range task.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

func profilesCmd(flags *globalFlags) *cobra.Command {
	var generation bool

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List deployment profiles and their routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if generation {
				return printGeneration(cmd, flags)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range gateway.ProfileNames() {
				p, _ := gateway.LookupProfile(name)
				fmt.Fprintf(tw, "%s\tport %d\tenv %s_*\t%s\n", p.Name, p.DefaultPort, p.EnvPrefix, p.Description)
				for _, r := range p.Routes {
					target := string(r.Endpoint)
					if r.Kind != "" {
						target += " (" + string(r.Kind) + ")"
					}
					fmt.Fprintf(tw, "  %s\t%s\t%s\t\n", r.Method, r.Pattern, target)
				}
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&generation, "generation", false, "List the effective per-kind generation settings instead")
	return cmd
}

// printGeneration lists the generation settings after config overrides.
func printGeneration(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := loadConfig(flags, newLogger(flags.logLevel, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("build generation registry: %w", err)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tTEMPERATURE\tTOP_K\tTOP_P\tBUDGET\tDESCRIPTION")
	for _, kind := range registry.ListKinds() {
		p := registry.Resolve(kind)
		budget := fmt.Sprintf("%d tokens", p.FixedTokens)
		if p.TokensPerWord > 0 {
			budget = fmt.Sprintf("%d x words", p.TokensPerWord)
		}
		fmt.Fprintf(tw, "%s\t%g\t%d\t%g\t%s\t%s\n", kind, p.Temperature, p.TopK, p.TopP, budget, p.Description)
	}
	return tw.Flush()
}

func configCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage contentmesh configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default user config unless one exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel, cmd.ErrOrStderr())
			path, err := config.NewLoader(logger).EnsureUserConfig()
			if err != nil {
				return fmt.Errorf("init user config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long: `Show prints the configuration after every layer has been applied, with
the generation section expanded to the full per-kind settings. The provider
credential is never printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, newLogger(flags.logLevel, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			registry, err := cfg.Registry()
			if err != nil {
				return fmt.Errorf("build generation registry: %w", err)
			}
			cfg.Generation = registry.ToConfig()

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	})

	return cmd
}
