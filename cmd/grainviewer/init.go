package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/grain-go/engine/scene"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	var (
		points uint32
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init <scene>",
		Short: "Write a scene document with every setting at its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			format, err := scene.FormatOf(path)
			if err != nil {
				return err
			}
			flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
			if !force {
				flags |= os.O_EXCL
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf("init: %s exists, use --force to overwrite", path)
			}
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			if err := scene.DefaultDocument(points).Encode(f, format); err != nil {
				f.Close()
				return fmt.Errorf("init: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&points, "points", scene.DefaultPointCount, "grains in the generated heap")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
