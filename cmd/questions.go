package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wtfashwin/Quiz-App/persistence"
	"github.com/wtfashwin/Quiz-App/services"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the question bank",
}

var questionsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load question sets from a YAML file into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Driver == "" || cfg.Database.Driver == "memory" {
			return fmt.Errorf("database driver %q does not persist question sets", cfg.Database.Driver)
		}

		sets, err := services.LoadQuestionFile(args[0])
		if err != nil {
			return err
		}

		db, err := persistence.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		names := make([]string, 0, len(sets))
		for name := range sets {
			names = append(names, name)
		}
		sort.Strings(names)

		ctx := context.Background()
		for _, name := range names {
			if err := db.SaveQuestionSet(ctx, sets[name]); err != nil {
				return fmt.Errorf("save %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d questions)\n", name, sets[name].Len())
		}
		return nil
	},
}

func init() {
	questionsCmd.AddCommand(questionsImportCmd)
}
