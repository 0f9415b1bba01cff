package main

import (
	"fmt"
	"io"
	"os"

	shikijin "github.com/shikijin/shikijin-go"
	"github.com/spf13/cobra"
)

// newBlobCmd creates the "shikijin blob" command group.
func newBlobCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Store and fetch opaque payloads",
	}
	cmd.AddCommand(newBlobPutCmd(configPath), newBlobGetCmd(configPath))
	return cmd
}

func newBlobPutCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "put",
		Short: "Save a file (or stdin) as a blob and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				data []byte
				err  error
			)
			if file == "" || file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("blob put: %w", err)
			}

			e, err := openEnv(cmd.Context(), *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			b := shikijin.NewBlob(data)
			if err := e.store.SaveBlob(cmd.Context(), b); err != nil {
				return fmt.Errorf("blob put: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), b.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "file to read; stdin when empty or -")
	return cmd
}

func newBlobGetCmd(configPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Write a blob to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := shikijin.ParseBlobID(args[0])
			if err != nil {
				return fmt.Errorf("blob get: %w", err)
			}
			e, err := openEnv(cmd.Context(), *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()
			b, err := e.store.GetBlob(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("blob get: %w", err)
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(b.Data)
				return err
			}
			return os.WriteFile(out, b.Data, 0o644)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "file to write; stdout when empty or -")
	return cmd
}
