package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anggasct/dsm"
	"github.com/anggasct/dsm/pkg/definition"
	"github.com/anggasct/dsm/visualization"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the machine as a Graphviz diagram",
	Long: `Outputs a DOT diagram of the definition. With -e the machine is started and
fed the events first, and the resulting active states are highlighted. An
output file ending in .svg is rendered through the Graphviz dot command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := loadDefinition(cmd)
		if err != nil {
			return err
		}
		log, _, err := newLogger(cmd)
		if err != nil {
			return err
		}

		events, _ := cmd.Flags().GetStringSlice("event")
		failing, _ := cmd.Flags().GetStringSlice("fail-guard")
		output, _ := cmd.Flags().GetString("output")

		var m *dsm.Machine
		if len(events) > 0 {
			m, err = definition.Build(def, cliBindings(def, log, failing), dsm.WithLogger(dsm.NewZapLogger(log)))
			if err != nil {
				return err
			}
			m.Start()
			defer m.Close()
			for _, arg := range events {
				m.ProcessEvent(parseEvent(arg))
			}
		}

		generator := visualization.NewDOTGenerator(def, m)
		switch {
		case output == "":
			content, err := generator.Generate()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		case strings.EqualFold(filepath.Ext(output), ".svg"):
			svg, err := generator.GenerateSVG()
			if err != nil {
				return err
			}
			return os.WriteFile(output, []byte(svg), 0644)
		default:
			return generator.GenerateToFile(output)
		}
	},
}

func init() {
	graphCmd.Flags().StringSliceP("event", "e", nil, "Event to process before drawing, repeatable")
	graphCmd.Flags().StringSlice("fail-guard", nil, "Guard names that evaluate to false")
	graphCmd.Flags().StringP("output", "o", "", "Output file, stdout when empty")
	rootCmd.AddCommand(graphCmd)
}
