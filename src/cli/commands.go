// Package cli wires the command surface: the LSP server, the MCP
// bridge, config management, and version reporting.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GodSpeedAI/domainforge-lsp/src/config"
	"github.com/GodSpeedAI/domainforge-lsp/src/internal/common"
	versionpkg "github.com/GodSpeedAI/domainforge-lsp/src/internal/version"
	"github.com/GodSpeedAI/domainforge-lsp/src/server"
)

const (
	CmdServer         = "server"
	CmdMCP            = "mcp"
	CmdVersion        = "version"
	CmdConfig         = "config"
	CmdConfigInit     = "init"
	CmdConfigShow     = "show"
	FlagConfig        = "config"
	FlagLogLevel      = "log-level"
	FlagWorkspaceRoot = "workspace-root"
)

var (
	configPath     string
	logLevel       string
	workspaceRoots []string
)

var rootCmd = &cobra.Command{
	Use:   "domainforge-lsp",
	Short: "DomainForge language server - semantic indexing, hover, and navigation for .sea documents",
	Long: `DomainForge LSP serves hover, go-to-definition, and find-references
for DomainForge (.sea) domain models, plus an MCP bridge for AI assistant
integration.

QUICK START:
  domainforge-lsp server                   # Start LSP server on stdio
  domainforge-lsp mcp                      # Start MCP bridge for AI assistants

CORE FEATURES:
  - Deterministic, size-bounded hover content with detail levels
  - Go-to-definition, find-references, and completion over a per-document semantic index
  - Parse diagnostics published on open/change/save
  - domainforge/hoverPlus extension returning the raw hover model
  - MCP tools: forge_hover, forge_definition, forge_references, forge_diagnostics
  - MCP file access restricted to workspace roots, with per-tool rate limits`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" {
			common.SetGlobalLogLevel(common.ParseLogLevel(logLevel))
		}
		return nil
	},
}

var serverCmd = &cobra.Command{
	Use:   CmdServer,
	Short: "Start the LSP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		srv, err := server.NewServer(cfg)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return srv.RunStdio(context.Background())
	},
}

var mcpCmd = &cobra.Command{
	Use:   CmdMCP,
	Short: "Start the MCP bridge on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Bridge.WorkspaceRoots = append(cfg.Bridge.WorkspaceRoots, workspaceRoots...)
		if len(cfg.Bridge.WorkspaceRoots) == 0 {
			// no configured root: serve the invocation directory
			if wd, err := os.Getwd(); err == nil {
				cfg.Bridge.WorkspaceRoots = []string{wd}
			}
		}
		bridge, err := server.NewMCPServer(cfg)
		if err != nil {
			return fmt.Errorf("failed to create MCP bridge: %w", err)
		}
		return bridge.RunStdio()
	},
}

var versionCmd = &cobra.Command{
	Use:   CmdVersion,
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(versionpkg.GetFullVersionInfo())
	},
}

var configCmd = &cobra.Command{
	Use:   CmdConfig,
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   CmdConfigInit,
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("wrote default configuration to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   CmdConfigShow,
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		fmt.Printf("hover.detail_level: %s\n", cfg.Hover.DetailLevel)
		fmt.Printf("hover.include_markdown: %t\n", cfg.Hover.IncludeMarkdown)
		fmt.Printf("cache.capacity: %d\n", cfg.Cache.Capacity)
		fmt.Printf("bridge.diagnostics_ttl_seconds: %d\n", cfg.Bridge.DiagnosticsTTLSeconds)
		fmt.Printf("bridge.workspace_roots: %s\n", strings.Join(cfg.Bridge.WorkspaceRoots, ", "))
		fmt.Printf("config_hash: %s\n", cfg.Hash())
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	common.SetGlobalLogLevel(common.ParseLogLevel(cfg.LogLevel))
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, FlagConfig, "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, FlagLogLevel, "", "log level: debug, info, warn, error")
	mcpCmd.Flags().StringArrayVar(&workspaceRoots, FlagWorkspaceRoot, nil, "workspace root the bridge may read documents from (repeatable)")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(serverCmd, mcpCmd, versionCmd, configCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
