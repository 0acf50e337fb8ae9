package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrecon/internal/api"
	"github.com/cleared-dev/bankrecon/internal/invoices"
	"github.com/cleared-dev/bankrecon/internal/store"
)

func newInvoicesCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Manage receivable invoices",
	}
	cmd.AddCommand(newInvoicesImportCommand(rt), newInvoicesListCommand(rt))
	return cmd
}

func newInvoicesImportCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load invoices from a CSV file, overwriting existing ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openPersistent(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Invoices == nil {
				return errors.New("the remote driver cannot load invoices")
			}
			n, err := invoices.Import(cmd.Context(), a.Invoices, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d invoices from %s\n", n, args[0])
			return nil
		},
	}
}

func newInvoicesListCommand(rt *runtime) *cobra.Command {
	var f store.InvoiceFilter
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			page, err := a.Store.ListInvoices(cmd.Context(), f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, api.NewEnvelope(page))
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNUMBER\tDATE\tCUSTOMER\tTOTAL\tPAID\tREMAINING")
			for _, inv := range page.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", inv.ID, inv.InvoiceNo, inv.InvoiceDate,
					inv.CustomerName, inv.TotalAmount.StringFixed(2), inv.PaidAmount.StringFixed(2), inv.Remaining().StringFixed(2))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d invoices\n", len(page.Items), page.Total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&f.ExcludeFullyPaid, "open", false, "only invoices with an amount still payable")
	cmd.Flags().StringVar(&f.CustomerID, "customer", "", "filter by customer id")
	cmd.Flags().StringVar(&f.InvoiceNo, "number", "", "filter by invoice number substring")
	cmd.Flags().IntVar(&f.Limit, "limit", store.DefaultLimit, "page size")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "page offset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}
