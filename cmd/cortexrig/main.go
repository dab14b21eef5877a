// Package main is the cortexrig CLI: an offline driver for the lip-sync and
// skeletal blending engine. It runs phoneme timelines against an avatar
// without a renderer and reports what the engine would have drawn.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/normanking/cortexrig/internal/config"
	"github.com/normanking/cortexrig/internal/logging"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool

	cfg *config.Config
	log *logging.Logger

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cortexrig",
		Short: "Lip-sync and skeletal blending engine driver",
		Long: titleStyle.Render("cortexrig") + `

Drives an avatar's mouth from phoneme timings and blends idle/talking
body clips, without a renderer:

Simulate a response:   cortexrig simulate --phonemes hello.json
Check clip bindings:   cortexrig inspect --avatar avatar.glb
Show configuration:    cortexrig config show`,
		Version:           version,
		PersistentPreRunE: initRuntime,
		SilenceUsage:      true,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (defaults plus CORTEXRIG_* env when empty)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(simulateCmd())
	root.AddCommand(inspectCmd())
	root.AddCommand(configCmd())
	return root
}

func initRuntime(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if verbose {
		c.Log.Level = logging.LevelDebug
	}

	l, err := logging.New(c.Log)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	cfg, log = c, l

	cl := log.Component("cli")
	cl.Debug().
		Str("config", cfgPath).
		Str("command", cmd.Name()).
		Msg("cortexrig started")
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in defaults as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Marshal(config.DefaultConfig())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}
