package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage quote categories",
}

var categoriesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Register the default categories and list all categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := cmd.Context()
		st.InitializeDefaultData(ctx, nil)
		out := cmd.OutOrStdout()
		for _, c := range st.Categories(ctx) {
			fmt.Fprintf(out, "%s\t%d\n", c.Name, st.CountQuotesInCategory(ctx, c.ID))
		}
		return nil
	},
}

func init() {
	categoriesCmd.AddCommand(categoriesSyncCmd)
	rootCmd.AddCommand(categoriesCmd)
}
