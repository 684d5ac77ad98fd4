package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newConfigCmd(g *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("config requires a subcommand: check")
		},
	}
	o := serveOpts{}
	var checkPorts bool
	check := &cobra.Command{
		Use:     "check",
		Short:   "Load and validate a config, then print the resolved models",
		Example: "  modelgate config check --config modelgate.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, g)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "addr\t%s\n", cfg.Addr)
			if !checkPorts {
				fmt.Fprintln(tw, "NAME\tPORT\tPATH")
				for _, m := range cfg.Models {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", m.Name, m.Port, m.Path)
				}
				return tw.Flush()
			}
			var busy []string
			fmt.Fprintln(tw, "NAME\tPORT\tPATH\tPORT STATE")
			for _, m := range cfg.Models {
				state := "free"
				if portBusy(cfg.Worker.Host, m.Port) {
					state = "busy"
					busy = append(busy, m.Name)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", m.Name, m.Port, m.Path, state)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(busy) > 0 {
				return fmt.Errorf("worker ports already in use: %s", strings.Join(busy, ", "))
			}
			return nil
		},
	}
	check.Flags().StringVar(&o.configPath, "config", envStr("MODELGATE_CONFIG", ""), "Config file (.yaml, .json, .toml)")
	check.Flags().StringVar(&o.modelsDir, "models-dir", "", "Scan this directory for *.gguf instead of the configured model list")
	check.Flags().IntVar(&o.portStart, "port-start", 0, "First worker port when scanning --models-dir")
	check.Flags().BoolVar(&checkPorts, "ports", false, "Also fail if a worker port is already in use")
	cmd.AddCommand(check)
	return cmd
}
