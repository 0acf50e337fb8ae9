package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrecon/internal/api"
	"github.com/cleared-dev/bankrecon/internal/app"
	"github.com/cleared-dev/bankrecon/internal/importer"
	"github.com/cleared-dev/bankrecon/internal/model"
)

func newParseCommand(rt *runtime) *cobra.Command {
	var bank string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a bank statement and print its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rt.load(cmd)
			if err != nil {
				return err
			}
			resolver, err := app.NewResolver(cfg, logger)
			if err != nil {
				return err
			}
			if bank == "" {
				bank = cfg.Parsing.DefaultBank
			}

			res, err := parseFile(resolver, bank, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				entries, _ := importer.ToEntries(res.Transactions, strings.ToUpper(bank))
				return writeJSON(out, api.ParseResult{
					Strategy:     res.Strategy,
					Skipped:      res.Skipped,
					Transactions: nonNil(res.Transactions),
					Entries:      nonNil(entries),
				})
			}
			if err := printTransactions(out, res.Transactions); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d transactions, %d skipped (strategy %s)\n", len(res.Transactions), res.Skipped, res.Strategy)
			return nil
		},
	}

	cmd.Flags().StringVar(&bank, "bank", "", "bank code selecting the statement dialect (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func parseFile(resolver *importer.Resolver, bank, path string) (importer.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return importer.Result{}, fmt.Errorf("reading statement: %w", err)
	}
	res, err := resolver.ParseFile(bank, filepath.Base(path), data)
	if err != nil {
		return importer.Result{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return res, nil
}

func printTransactions(w io.Writer, txns []model.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDATE\tBRANCH\tAMOUNT\tBALANCE\tDESCRIPTION")
	for _, t := range txns {
		balance := "-"
		if t.Balance != nil {
			balance = t.Balance.StringFixed(2)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Date, t.Branch, t.Amount.StringFixed(2), balance, t.Description)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
