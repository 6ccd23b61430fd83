// Package cli 是运维命令行 injectctl：手动同步页面、清理缓存、预览 loader
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version 构建时通过 ldflags 注入
var Version = "dev"

// 全局参数
var (
	globalServer string
	globalSecret string
	globalQuiet  bool
)

var rootCmd = &cobra.Command{
	Use:   "injectctl",
	Short: "Operator tool for the code injection server",
	Long: `injectctl talks to the code injection server and its database.

  injectctl sync --site <siteId>     reconcile one site's pages with the platform
  injectctl sync --all               reconcile every connected site
  injectctl purge --type page --id 3 drop cached bundles on a running server
  injectctl loader --id 3            print the loader script for a target`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 由 main 调用
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalServer, "server", envOr("INJECT_SERVER", "http://localhost:8080"), "Base URL of a running server")
	rootCmd.PersistentFlags().StringVar(&globalSecret, "secret", os.Getenv("PURGE_SECRET"), "Purge secret (defaults to $PURGE_SECRET)")
	rootCmd.PersistentFlags().BoolVarP(&globalQuiet, "quiet", "q", false, "Suppress non-error output")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(loaderCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "injectctl %s\n", Version)
	},
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// printf 受 --quiet 控制
func printf(cmd *cobra.Command, format string, args ...interface{}) {
	if globalQuiet {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
