package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"quotebot/internal/quotesource"
	"quotebot/internal/storage"
)

var (
	quoteAuthor   string
	quoteCategory string
)

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Add, list and pick stored quotes",
}

var quotesAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Store a quote",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		category := strings.ToLower(strings.TrimSpace(quoteCategory))
		if category == "" {
			category = quotesource.DefaultCategory
		}
		text := strings.Join(args, " ")
		if !st.AddQuote(cmd.Context(), text, quoteAuthor, category) {
			return errors.New("quote not saved (empty or duplicate)")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved to %s\n", category)
		return nil
	},
}

var quotesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored quotes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		var qs []storage.Quote
		if c := strings.TrimSpace(quoteCategory); c != "" {
			qs = st.QuotesByCategory(cmd.Context(), strings.ToLower(c))
		} else {
			qs = st.AllQuotes(cmd.Context())
		}
		for _, q := range qs {
			printQuote(cmd.OutOrStdout(), q)
		}
		return nil
	},
}

var quotesRandomCmd = &cobra.Command{
	Use:   "random",
	Short: "Print one random stored quote",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		q, ok := st.RandomQuote(cmd.Context(), strings.ToLower(strings.TrimSpace(quoteCategory)))
		if !ok {
			return errors.New("no quotes stored")
		}
		printQuote(cmd.OutOrStdout(), q)
		return nil
	},
}

func printQuote(w io.Writer, q storage.Quote) {
	fmt.Fprintf(w, "[%s] %q by %s\n", q.Category, q.Text, q.Author)
}

func init() {
	quotesAddCmd.Flags().StringVarP(&quoteAuthor, "author", "a", "", "quote author (default Unknown)")
	for _, c := range []*cobra.Command{quotesAddCmd, quotesListCmd, quotesRandomCmd} {
		c.Flags().StringVar(&quoteCategory, "category", "", "category name")
	}
	quotesCmd.AddCommand(quotesAddCmd, quotesListCmd, quotesRandomCmd)
	rootCmd.AddCommand(quotesCmd)
}
