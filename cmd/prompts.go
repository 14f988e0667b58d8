package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-enrich/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage the stored prompt templates",
}

var promptsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write default templates for any missing prompt keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPromptStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(cmd.Context()); err != nil {
			return eris.Wrap(err, "migrate prompt store")
		}
		n, err := store.Seed(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "seed prompts")
		}
		zap.L().Info("prompts seeded", zap.Int("written", n))
		return nil
	},
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every stored prompt key",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPromptStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		all, err := store.All(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "list prompts")
		}
		for _, key := range prompts.Keys {
			if _, ok := all[key]; ok {
				fmt.Printf("%s (%d chars)\n", key, len(all[key]))
			} else {
				fmt.Printf("%s (not seeded)\n", key)
			}
		}
		return nil
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print one stored prompt template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openPromptStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		value, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrapf(err, "get prompt %s", args[0])
		}
		if value == "" {
			value = prompts.Default(args[0])
		}
		fmt.Println(value)
		return nil
	},
}

var promptsSetCmd = &cobra.Command{
	Use:   "set <key> <file>",
	Short: "Replace a stored prompt template from a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[1])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[1])
		}

		store, err := openPromptStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Set(cmd.Context(), args[0], string(content)); err != nil {
			return eris.Wrapf(err, "set prompt %s", args[0])
		}
		zap.L().Info("prompt updated", zap.String("key", args[0]), zap.Int("chars", len(content)))
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsSeedCmd, promptsListCmd, promptsShowCmd, promptsSetCmd)
	rootCmd.AddCommand(promptsCmd)
}
