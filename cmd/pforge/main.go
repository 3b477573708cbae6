// pforge serves declaratively-configured MCP tools over stdio.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/termfx/pforge/core"
	"github.com/termfx/pforge/internal/config"
	"github.com/termfx/pforge/mcp"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pforge",
		Short:         "Declarative MCP servers from configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.Load()
			if configPath == "" {
				configPath = opts.ConfigPath
			}

			cfg, err := loadServerConfig(configPath)
			if err != nil {
				return err
			}
			if opts.Debug {
				cfg.Debug = true
			}
			if opts.StatePath != "" && cfg.State == nil {
				cfg.State = &mcp.StateConfig{
					Backend:    "sqlite",
					Path:       opts.StatePath,
					DefaultTTL: opts.StateDefaultTTL,
				}
			}

			server, err := mcp.NewServer(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the validated server configuration (JSON)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pforge version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(core.Version)
		},
	}
}

// loadServerConfig decodes the already-validated configuration object. The
// YAML schema and its parser live outside this binary; what arrives here is
// the parsed form.
func loadServerConfig(path string) (mcp.Config, error) {
	if path == "" {
		return mcp.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := mcp.DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return mcp.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
