package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"hatespeech-annotation/internal/extract"
	"hatespeech-annotation/internal/normalize"

	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var flags struct {
		in          string
		deriveLabel bool
	}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Pull the prediction object out of a raw model reply (\"-\" reads stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				raw []byte
				err error
			)
			if flags.in == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(flags.in)
			}
			if err != nil {
				return fmt.Errorf("failed to read reply: %w", err)
			}

			obj, err := extract.Extract(string(raw))
			if errors.Is(err, extract.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "null")
				return nil
			}
			if err != nil {
				return err
			}

			p := normalize.Normalize(obj)
			if flags.deriveLabel {
				normalize.DeriveLabel(&p)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.in, "in", "-", "raw reply file")
	f.BoolVar(&flags.deriveLabel, "derive-label", true, "fill a missing label from the score")
	return cmd
}
