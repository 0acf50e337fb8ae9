package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/bankrecon/internal/app"
	"github.com/cleared-dev/bankrecon/internal/importer"
)

func newImportCommand(rt *runtime) *cobra.Command {
	var bank string
	var scan, processed bool

	cmd := &cobra.Command{
		Use:   "import <file> | import --scan [dir]",
		Short: "Parse bank statements and store their entries",
		Long: `Parse a statement file and bulk insert its entries. Entries already
stored are skipped, so re-importing a statement is safe.

With --scan, every statement in <dir>/import/ is imported. With --processed,
each stored statement is moved to import/processed/; a single file must then
live in an import/ directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !scan && len(args) == 0 {
				return errors.New("give a statement file or --scan")
			}

			a, err := rt.openPersistent(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if bank == "" {
				bank = a.Config.Parsing.DefaultBank
			}
			if !scan {
				return importOne(cmd, a, bank, args[0], processed)
			}

			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			files, err := importer.Scan(root)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No statements to import.")
				return nil
			}
			for _, f := range files {
				if err := importFile(cmd, a, bank, f.Path); err != nil {
					return err
				}
				if processed {
					if err := importer.MarkProcessed(root, f.Name); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bank, "bank", "", "bank code of the statements (default from config)")
	cmd.Flags().BoolVar(&scan, "scan", false, "import every statement in <dir>/import/")
	cmd.Flags().BoolVar(&processed, "processed", false, "move stored statements to import/processed/")

	return cmd
}

func importOne(cmd *cobra.Command, a *app.App, bank, path string, processed bool) error {
	var root string
	if processed {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		dir := filepath.Dir(abs)
		if filepath.Base(dir) != "import" {
			return fmt.Errorf("--processed needs a file inside an import/ directory, got %s", path)
		}
		root = filepath.Dir(dir)
	}

	if err := importFile(cmd, a, bank, path); err != nil {
		return err
	}
	if processed {
		return importer.MarkProcessed(root, filepath.Base(path))
	}
	return nil
}

func importFile(cmd *cobra.Command, a *app.App, bank, path string) error {
	res, err := parseFile(a.Resolver, bank, path)
	if err != nil {
		return err
	}
	entries, rejected := importer.ToEntries(res.Transactions, strings.ToUpper(bank))
	if rejected > 0 {
		a.Logger.Warn("rows not convertible to bank entries", "file", path, "rejected", rejected)
	}

	result, err := a.Store.BulkInsert(cmd.Context(), entries)
	if err != nil {
		return fmt.Errorf("storing entries from %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d inserted, %d skipped of %d entries (%d rows skipped by parser, strategy %s)\n",
		path, result.Inserted, result.Skipped, result.Total, res.Skipped, res.Strategy)
	return nil
}
