package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anggasct/dsm"
	"github.com/anggasct/dsm/pkg/definition"
)

var rootCmd = &cobra.Command{
	Use:   "dsm",
	Short: "dsm runs hierarchical state machines described in YAML",
	Long: `dsm validates, runs and draws hierarchical state machines with orthogonal
regions and history, declared in YAML or JSON definition files.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("file", "f", "", "Definition file (.yaml, .yml or .json)")
	rootCmd.PersistentFlags().String("log-level", "warning", "Log level: debug, info, warning, error")
	_ = rootCmd.MarkPersistentFlagRequired("file")
}

func loadDefinition(cmd *cobra.Command) (*definition.Definition, error) {
	path, _ := cmd.Flags().GetString("file")
	def, err := definition.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%s is invalid:\n%w", path, err)
	}
	return def, nil
}

// newLogger returns a console zap logger writing to stderr
func newLogger(cmd *cobra.Command) (*zap.Logger, dsm.Level, error) {
	name, _ := cmd.Flags().GetString("log-level")
	level, err := dsm.ParseLevel(name)
	if err != nil {
		return nil, level, err
	}

	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoder), zapcore.Lock(os.Stderr), dsm.ZapLevel(level))
	return zap.New(core), level, nil
}

// parseEvent turns "name" or "name=payload" into an event
func parseEvent(arg string) dsm.NamedEvent {
	name, payload, ok := strings.Cut(arg, "=")
	if !ok {
		return definition.Event(name, nil)
	}
	return definition.Event(name, payload)
}

// cliBindings binds every name used by def. Guards pass unless listed in
// failing; actions and hooks log their name.
func cliBindings(def *definition.Definition, log *zap.Logger, failing []string) definition.Bindings {
	b := definition.Bindings{
		Guards:  map[string]dsm.GuardFunc{},
		Actions: map[string]dsm.ActionFunc{},
		Hooks:   map[string]definition.HookFunc{},
	}
	rejected := map[string]bool{}
	for _, name := range failing {
		rejected[name] = true
	}

	bindTransitions := func(transitions []definition.TransitionSpec) {
		for _, t := range transitions {
			if t.Guard != "" {
				name := t.Guard
				b.Guards[name] = func(host dsm.State, evt dsm.Event) bool {
					return !rejected[name]
				}
			}
			if t.Action != "" {
				name := t.Action
				b.Actions[name] = func(host dsm.State, evt dsm.Event) error {
					log.Info("Action", zap.String("action", name), zap.String("event", dsm.EventName(evt)))
					return nil
				}
			}
		}
	}

	bindTransitions(def.Transitions)
	def.Walk(func(s, _ *definition.StateSpec) {
		bindTransitions(s.Transitions)
		for _, hook := range []string{s.OnEntry, s.OnExit} {
			if hook == "" {
				continue
			}
			name := hook
			b.Hooks[name] = func(n *definition.Node) error {
				log.Info("Hook", zap.String("hook", name), zap.String("state", n.Name()))
				return nil
			}
		}
	})
	return b
}
