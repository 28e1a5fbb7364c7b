// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/schemafwd/migrate/pkg/graph"
)

type unitStatus struct {
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

type appStatus struct {
	App   string       `json:"app"`
	Units []unitStatus `json:"units"`
}

func statusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "status [app]",
		Aliases: []string{"showmigrations"},
		Short:   "Show which migrations have been applied",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			apps := e.graph.Applications()
			if len(args) == 1 {
				apps = []string{args[0]}
			}

			report, err := statusOf(e, apps)
			if err != nil {
				return err
			}

			switch format {
			case "":
				printStatus(report)
				return nil
			case "json":
				out, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			case "yaml":
				out, err := yaml.Marshal(report)
				if err != nil {
					return err
				}
				fmt.Print(string(out))
				return nil
			default:
				return fmt.Errorf("invalid output format %q: must be \"json\" or \"yaml\"", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "", "output format: json or yaml (default: human-readable)")
	return cmd
}

func statusOf(e *engine, apps []string) ([]appStatus, error) {
	report := make([]appStatus, 0, len(apps))
	for _, app := range apps {
		seq := e.graph.Sequence(app)
		if seq == nil {
			continue
		}
		st := appStatus{App: app}
		for _, name := range seq.Names() {
			st.Units = append(st.Units, unitStatus{
				Name:    name,
				Applied: e.history.Applied(graph.UnitRef{App: app, Name: name}),
			})
		}
		report = append(report, st)
	}
	return report, nil
}

func printStatus(report []appStatus) {
	for _, st := range report {
		fmt.Println(st.App)
		for _, u := range st.Units {
			mark := "[ ]"
			if u.Applied {
				mark = "[X]"
			}
			fmt.Printf("  %s %s\n", mark, u.Name)
		}
	}
}
