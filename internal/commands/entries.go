package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrecon/internal/api"
	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

func newEntriesCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Inspect stored bank entries",
	}
	cmd.AddCommand(newEntriesListCommand(rt))
	return cmd
}

func newEntriesListCommand(rt *runtime) *cobra.Command {
	var f store.EntryFilter
	var amountType string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bank entries with their reconciliation delta",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if amountType != "" {
				f.AmountType = model.AmountType(amountType)
				if !f.AmountType.Valid() {
					return fmt.Errorf("unknown amount type %q (want CR or DB)", amountType)
				}
			}

			a, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if f.BankCode == "" {
				f.BankCode = a.Config.Parsing.DefaultBank
			}
			page, err := a.Store.ListEntries(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, api.NewEnvelope(page))
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tMATCHED\tDELTA\tSTATUS\tDESCRIPTION")
			for _, e := range page.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.TransactionDate, e.AmountType,
					e.Amount.StringFixed(2), e.MatchedTotal.StringFixed(2), a.Allocator.Delta(e).StringFixed(2),
					entryStatus(e), e.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d entries\n", len(page.Items), page.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.BankCode, "bank", "", "bank code (default from config)")
	cmd.Flags().StringVar(&amountType, "type", "", "amount type: CR or DB")
	cmd.Flags().StringVar(&f.Month, "month", "", "transaction month, YYYY-MM")
	cmd.Flags().StringVar(&f.Description, "desc", "", "description substring")
	cmd.Flags().IntVar(&f.Limit, "limit", store.DefaultLimit, "page size")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "page offset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func entryStatus(e model.BankEntry) string {
	switch {
	case !e.Reconciled():
		return "open"
	case e.AttachedCount == 0:
		return "none"
	default:
		return fmt.Sprintf("%d invoices", e.AttachedCount)
	}
}
