package main

import (
	"encoding/json"
	"errors"
	"fmt"

	shikijin "github.com/shikijin/shikijin-go"
	"github.com/spf13/cobra"
)

// newSubmitCmd creates the "shikijin submit" subcommand.
func newSubmitCmd(configPath *string) *cobra.Command {
	var (
		taskType string
		payload  string
		requires []string
		id       string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Admit a task to the store",
		Long:  "Admit one task. --payload must be JSON; --requires lists capability\nnames a worker must hold. Prints the task id.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if taskType == "" {
				return errors.New("submit: --type is required")
			}
			var raw []byte
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return fmt.Errorf("submit: --payload is not valid JSON")
				}
				raw = []byte(payload)
			}
			opts := []shikijin.Option{shikijin.Requires(capabilities(requires)...)}
			if id != "" {
				tid, err := shikijin.ParseTaskID(id)
				if err != nil {
					return fmt.Errorf("submit: %w", err)
				}
				opts = append(opts, shikijin.WithID(tid))
			}
			t, err := shikijin.NewTask(taskType, raw, opts...)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}

			e, err := openEnv(cmd.Context(), *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			if e.cfg.Store.Type == "memory" {
				e.log.Warnf("submitting to an in-memory store; the task is gone when this process exits")
			}
			if err := e.store.AddTask(cmd.Context(), t); err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&taskType, "type", "", "task type (handler name)")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload")
	cmd.Flags().StringSliceVar(&requires, "requires", nil, "required capability names")
	cmd.Flags().StringVar(&id, "id", "", "task id to use (overwrites an existing task)")
	return cmd
}
