package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
)

func newHashCmd(*app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <password>",
		Short: "Print the digest of a password",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.Wrapf(rainbow.ErrValidation, "expected one password, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			password := args[0]
			if err := rainbow.ValidatePassword(password, len(password)); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), rainbow.NewDESHasher().Hash(password))
			return err
		},
	}
}
