package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mohitkumar/waterflow/agent"
	"github.com/mohitkumar/waterflow/flow"
	"github.com/mohitkumar/waterflow/jober"
	"github.com/mohitkumar/waterflow/logger"
	"github.com/mohitkumar/waterflow/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func validateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <definition.json>...",
		Short: "Parse flow definitions and report their errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := jober.NewRegistry(jober.Deps{})
			failed := 0
			for _, file := range args {
				raw, err := os.ReadFile(file)
				if err == nil {
					var def *flow.Definition
					if def, err = flow.Parse(raw, registry); err == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s, %d nodes)\n", file, def.Id, len(def.Nodes()))
						continue
					}
				}
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", file, err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d definitions are invalid", failed, len(args))
			}
			return nil
		},
	}
}

type runResult struct {
	Trace    *model.FlowTrace     `json:"trace"`
	Contexts []*model.FlowContext `json:"contexts"`
}

func runCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one trace of a flow definition and print its contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			definitions, _ := cmd.Flags().GetStringSlice("definition")
			start, _ := cmd.Flags().GetString("start")
			input, _ := cmd.Flags().GetString("input")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			return c.run(cmd, definitions, start, input, timeout)
		},
	}
	cmd.Flags().StringSlice("definition", nil, "flow definition files, repeatable")
	cmd.Flags().String("start", "", "id of the definition to start, the first one loaded when not set")
	cmd.Flags().String("input", "", "business data file, empty object when not set")
	cmd.Flags().Duration("timeout", 30*time.Second, "how long to wait for the trace")
	_ = cmd.MarkFlagRequired("definition")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, definitions []string, start, input string, timeout time.Duration) error {
	data := make(map[string]any)
	if len(input) > 0 {
		in, err := os.ReadFile(input)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(in, &data); err != nil {
			return fmt.Errorf("input %s: %w", input, err)
		}
	}

	a, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	if err = a.Start(); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Shutdown(ctx); err != nil {
			logger.Error("error shutting down", zap.Error(err))
		}
		logger.Sync()
	}()

	for _, file := range definitions {
		raw, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		def, err := a.Engine.LoadDefinition(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if len(start) == 0 {
			start = def.Id
		}
	}
	if _, err := a.Engine.Definition(start); err != nil {
		return fmt.Errorf("%w, loaded: [%s]", err, strings.Join(a.Engine.Definitions(), ", "))
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	trace, err := a.Engine.StartTrace(ctx, start, data)
	if err != nil {
		return err
	}
	trace, err = a.Engine.Await(ctx, trace.Id)
	if err != nil {
		return err
	}
	contexts, err := a.Engine.Contexts(context.Background(), trace.Id)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(runResult{Trace: trace, Contexts: contexts}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
