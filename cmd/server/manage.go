package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and seed defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", cfg.DBPath)
			return nil
		},
	}
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change runtime settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := store.Settings.Load(cmd.Context())
			if err != nil {
				return err
			}
			values := s.Values()
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, values[k])
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key] [value]",
		Short: "Validate and store one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, _, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			v, err := store.Settings.Set(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", args[0], v)
			return nil
		},
	})

	return cmd
}
