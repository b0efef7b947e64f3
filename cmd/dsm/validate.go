package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anggasct/dsm/pkg/definition"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a definition for consistency",
	Long: `Parses the definition, checks names, targets, entry states and history modes,
then builds the machine to catch impossible transitions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := loadDefinition(cmd)
		if err != nil {
			return err
		}
		log, _, err := newLogger(cmd)
		if err != nil {
			return err
		}
		if _, err := definition.Build(def, cliBindings(def, log, nil)); err != nil {
			return err
		}

		states := 0
		def.Walk(func(*definition.StateSpec, *definition.StateSpec) { states++ })
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%d states)\n", def.Name, states)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
