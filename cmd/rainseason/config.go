package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/chrissnell/rainseason/pkg/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration profiles",
	}
	cmd.AddCommand(
		newConfigImportCmd(root),
		newConfigSetCmd(root),
		newConfigShowCmd(root),
		newConfigProfilesCmd(root),
	)
	return cmd
}

func sqliteProvider(root *rootOptions) (*config.SQLiteProvider, error) {
	if root.cfgBackend != "sqlite" {
		return nil, errors.New("this command needs --config-backend sqlite")
	}
	filename, _ := filepath.Abs(root.cfgFile)
	return config.NewSQLiteProvider(filename, root.profile)
}

func newConfigImportCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.yaml",
		Short: "Copy a YAML configuration into a SQLite profile",
		Example: `  rainseason config import config.yaml --config-backend sqlite --config rainseason.db
  rainseason config import strict.yaml --config-backend sqlite --config rainseason.db --profile strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgData, err := config.NewYAMLProvider(args[0]).LoadConfig()
			if err != nil {
				return err
			}

			provider, err := sqliteProvider(root)
			if err != nil {
				return err
			}
			defer provider.Close()

			if err := provider.SaveConfig(cfgData); err != nil {
				return fmt.Errorf("could not save profile %q: %w", root.profile, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s into profile %q of %s\n", args[0], root.profile, root.cfgFile)
			return nil
		},
	}
}

func newConfigSetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "set KEY VALUE",
		Short:   "Set one dotted key of a SQLite profile",
		Example: `  rainseason config set mask.min_rangeland_fraction 0.9 --config-backend sqlite --config rainseason.db --profile strict`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := sqliteProvider(root)
			if err != nil {
				return err
			}
			defer provider.Close()
			return provider.SetSetting(args[0], args[1])
		},
	}
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw {
				provider, err := sqliteProvider(root)
				if err != nil {
					return err
				}
				defer provider.Close()

				settings, err := provider.Settings()
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(settings))
				for k := range settings {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, settings[k])
				}
				return nil
			}

			cfgData, err := loadConfig(root)
			if err != nil {
				return err
			}
			b, err := yaml.Marshal(cfgData)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "List the stored key/value pairs of a SQLite profile instead")
	return cmd
}

func newConfigProfilesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the profiles of a SQLite configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := sqliteProvider(root)
			if err != nil {
				return err
			}
			defer provider.Close()

			profiles, err := provider.Profiles()
			if err != nil {
				return err
			}
			for _, p := range profiles {
				marker := " "
				if p == root.profile {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, p)
			}
			return nil
		},
	}
}
