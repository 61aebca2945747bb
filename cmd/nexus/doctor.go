package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildDoctorCmd reports what the wiring actually produced: the resolved
// agent settings and the tool names the approval profile admitted. It
// exists so "is the loop really wired end to end" has a one-command answer
// instead of requiring a live LLM call.
func buildDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "report the resolved config and registered tools without running a turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "provider: %s (archetype: %s, model: %s)\n", rt.cfg.Agent.Provider, rt.cfg.Agent.Archetype, rt.cfg.Agent.Model)
			fmt.Fprintf(out, "approval profile: %s\n", rt.cfg.Tools.Approval.Profile)
			fmt.Fprintf(out, "memory store: %s\n", rt.cfg.Memory.DatabasePath)
			fmt.Fprintln(out, "registered tools:")
			for _, def := range rt.toolDefinitions() {
				fmt.Fprintf(out, "  - %s (%s)\n", def.Name, def.Group)
			}
			return nil
		},
	}
}
