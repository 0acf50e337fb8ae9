package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrecon/internal/reconcile"
)

// allocationFlag is one --invoice value, ID or ID=AMOUNT.
type allocationFlag struct {
	invoiceID string
	amount    *decimal.Decimal
}

func parseAllocationFlag(s string) (allocationFlag, error) {
	invID, raw, hasAmount := strings.Cut(s, "=")
	invID = strings.TrimSpace(invID)
	if invID == "" {
		return allocationFlag{}, fmt.Errorf("invalid --invoice %q: missing invoice id", s)
	}
	af := allocationFlag{invoiceID: invID}
	if hasAmount {
		amt, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
		if err != nil {
			return allocationFlag{}, fmt.Errorf("invalid --invoice %q: bad amount: %w", s, err)
		}
		af.amount = &amt
	}
	return af, nil
}

func newReconcileCommand(rt *runtime) *cobra.Command {
	var invoiceFlags []string
	var none, dryRun bool
	var note string

	cmd := &cobra.Command{
		Use:   "reconcile <entry-id>",
		Short: "Match a bank entry to invoices",
		Long: `Match a bank entry to invoices. The --invoice flags give the complete set
of invoices for the entry and replace any earlier match. An invoice without
an amount is allocated its remaining payable amount.

Without --invoice or --none, the entry's current state and first page of
candidate invoices are printed and nothing is saved.`,
		Example: `  bankrecon reconcile BE-3f2a... --invoice INV-1 --invoice INV-2=250000
  bankrecon reconcile BE-3f2a... --none --note "bank fee"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if none && len(invoiceFlags) > 0 {
				return errors.New("--none cannot be combined with --invoice")
			}
			allocs := make([]allocationFlag, 0, len(invoiceFlags))
			for _, s := range invoiceFlags {
				af, err := parseAllocationFlag(s)
				if err != nil {
					return err
				}
				allocs = append(allocs, af)
			}

			a, err := rt.openPersistent(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			sess, err := a.Allocator.OpenID(ctx, args[0])
			if err != nil {
				return err
			}

			if !none && len(allocs) == 0 {
				printSession(out, sess)
				sess.Abandon()
				return nil
			}

			if len(allocs) > 0 {
				if err := applyAllocations(ctx, sess, allocs); err != nil {
					sess.Abandon()
					return err
				}
			}

			if dryRun {
				printSession(out, sess)
				sess.Abandon()
				fmt.Fprintln(out, "Dry run, nothing saved.")
				return nil
			}

			if none {
				err = sess.SaveNone(ctx, note)
			} else {
				err = sess.Save(ctx, note)
			}
			if errors.Is(err, reconcile.ErrStaleView) {
				a.Logger.Warn("saved, but reloading the entry failed", "entry", args[0], "err", err)
			} else if err != nil {
				return err
			}

			sum := sess.Recompute()
			fmt.Fprintf(out, "Saved %s: %d invoices, matched %s, delta %s\n", args[0], len(sess.Selected()),
				sum.InvoiceSum.StringFixed(2), sum.Delta.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&invoiceFlags, "invoice", nil, "invoice to match, as ID or ID=AMOUNT (repeatable)")
	cmd.Flags().BoolVar(&none, "none", false, "record that the entry matches no invoice")
	cmd.Flags().StringVar(&note, "note", "", "note stored with the match")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the resulting allocation without saving")
	cmd.Flags().String("audit-log", "", "CSV file receiving one row per save (default from config)")

	return cmd
}

// applyAllocations makes allocs the session's whole selection.
func applyAllocations(ctx context.Context, sess *reconcile.Session, allocs []allocationFlag) error {
	wanted := make(map[string]bool, len(allocs))
	for _, af := range allocs {
		wanted[af.invoiceID] = true
	}
	for _, invID := range sess.Selected() {
		if !wanted[invID] {
			if err := sess.DeselectInvoice(invID); err != nil {
				return err
			}
		}
	}

	for _, af := range allocs {
		if err := findInvoice(ctx, sess, af.invoiceID); err != nil {
			return err
		}
		if err := sess.SelectInvoice(af.invoiceID); err != nil {
			return err
		}
		if af.amount != nil {
			if err := sess.SetAllocation(af.invoiceID, *af.amount); err != nil {
				return err
			}
		}
	}
	return nil
}

// findInvoice pages through candidates until invoiceID is loaded.
func findInvoice(ctx context.Context, sess *reconcile.Session, invoiceID string) error {
	if _, ok := sess.Invoice(invoiceID); ok {
		return nil
	}
	page := sess.CandidatePage()
	for page.HasNext() {
		var err error
		page, err = sess.Candidates(ctx, page.Limit, page.NextOffset())
		if err != nil {
			return err
		}
		if _, ok := sess.Invoice(invoiceID); ok {
			return nil
		}
	}
	return fmt.Errorf("invoice %q is not an open invoice: %w", invoiceID, reconcile.ErrUnknownInvoice)
}

func printSession(w io.Writer, sess *reconcile.Session) {
	e := sess.Entry()
	fmt.Fprintf(w, "Entry %s  %s  %s %s  %s\n", e.ID, e.TransactionDate, e.AmountType, e.Amount.StringFixed(2), e.Description)
	fmt.Fprintf(w, "Status: %s\n\n", entryStatus(e))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEL\tID\tNUMBER\tDATE\tCUSTOMER\tREMAINING\tALLOCATED")
	page := sess.CandidatePage()
	for _, inv := range page.Items {
		mark, allocated := "", ""
		if sess.IsSelected(inv.ID) {
			mark, allocated = "*", sess.Allocation(inv.ID).StringFixed(2)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", mark, inv.ID, inv.InvoiceNo, inv.InvoiceDate,
			inv.CustomerName, inv.Remaining().StringFixed(2), allocated)
	}
	_ = tw.Flush()

	sum := sess.Recompute()
	fmt.Fprintf(w, "\n%d of %d candidate invoices. Selected %s, delta %s", len(page.Items), page.Total,
		sum.InvoiceSum.StringFixed(2), sum.Delta.StringFixed(2))
	if sum.Settled {
		fmt.Fprint(w, " (settled)")
	}
	fmt.Fprintln(w)
}
