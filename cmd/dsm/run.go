package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/anggasct/dsm"
	"github.com/anggasct/dsm/pkg/definition"
	"github.com/anggasct/dsm/pkg/observers"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a machine and feed it events",
	Long: `Builds the machine, starts it and processes the events given with -e in
order, printing the active configuration after each one. An event is a name
or name=payload. Guards pass unless named with --fail-guard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := loadDefinition(cmd)
		if err != nil {
			return err
		}
		log, _, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer log.Sync()

		events, _ := cmd.Flags().GetStringSlice("event")
		failing, _ := cmd.Flags().GetStringSlice("fail-guard")
		withMetrics, _ := cmd.Flags().GetBool("metrics")

		validation := observers.NewValidationObserver()
		def.Walk(func(s, _ *definition.StateSpec) {
			for _, t := range s.Transitions {
				if t.Internal() {
					validation.AddAllowedTransition(s.Name, s.Name)
					continue
				}
				validation.AddAllowedTransition(s.Name, t.To)
			}
		})

		opts := []dsm.Option{
			dsm.WithLogger(dsm.NewZapLogger(log)),
			dsm.WithObserver(validation),
			dsm.WithObserver(observers.NewLoggingObserver(log, observers.LogDebug)),
		}
		reg := prometheus.NewRegistry()
		if withMetrics {
			metrics, err := observers.NewMetricsObserver(reg)
			if err != nil {
				return err
			}
			opts = append(opts, dsm.WithObserver(metrics))
		}

		m, err := definition.Build(def, cliBindings(def, log, failing), opts...)
		if err != nil {
			return err
		}
		m.Start()
		defer m.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "start: %s\n", m)
		for _, arg := range events {
			status := "rejected"
			if m.ProcessEvent(parseEvent(arg)) {
				status = "handled"
			}
			fmt.Fprintf(out, "%s (%s): %s\n", arg, status, m)
		}
		if n := m.Pending(); n > 0 {
			fmt.Fprintf(out, "%d deferred event(s) still pending\n", n)
		}

		if withMetrics {
			families, err := reg.Gather()
			if err != nil {
				return err
			}
			for _, mf := range families {
				if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
					return err
				}
			}
		}

		if violations := validation.GetViolations(); len(violations) > 0 {
			for _, v := range violations {
				fmt.Fprintln(cmd.ErrOrStderr(), v)
			}
			return fmt.Errorf("%d problem(s) during the run", len(violations))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringSliceP("event", "e", nil, "Event to process, repeatable (name or name=payload)")
	runCmd.Flags().StringSlice("fail-guard", nil, "Guard names that evaluate to false")
	runCmd.Flags().Bool("metrics", false, "Print prometheus metrics after the run")
	rootCmd.AddCommand(runCmd)
}
