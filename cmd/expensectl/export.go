package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"expensetracker/internal/core"
	"expensetracker/internal/sheets"
	"expensetracker/internal/sheets/google"
)

const defaultExportName = "expenses.csv"

func runExport(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("export")
	dates := dateRangeFlags(fs)
	category := fs.Int64("category", 0, "category ID")
	out := fs.String("out", "", "output file (\"-\" for stdout, default: server file name)")
	toSheets := fs.Bool("sheets", false, "append the export to the configured Google Sheet")
	header := fs.Bool("header", false, "include the header row when appending to the sheet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *toSheets && *out != "" {
		return errors.New("-out and -sheets are mutually exclusive")
	}

	r := dates()
	filter := core.ExportFilter{StartDate: r.StartDate, EndDate: r.EndDate}
	if *category > 0 {
		filter.CategoryID = category
	}

	export, err := a.client.ExportExpenses(ctx, filter)
	if err != nil {
		return err
	}

	if *toSheets {
		return pushToSheets(ctx, a, export.ContentType, export.Data, *header)
	}

	if *out == "-" {
		_, err := a.stdout.Write(export.Data)
		return err
	}
	path := *out
	if path == "" && export.Filename != "" {
		path = filepath.Base(export.Filename)
	}
	if path == "" {
		path = defaultExportName
	}
	if err := os.WriteFile(path, export.Data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(a.stdout, "Exported %d bytes to %s\n", len(export.Data), path)
	return nil
}

func pushToSheets(ctx context.Context, a *app, contentType string, data []byte, header bool) error {
	if !a.cfg.SheetsEnabled() {
		return errors.New("GOOGLE_SPREADSHEET_ID must be set to export to Google Sheets")
	}
	client, err := google.NewFromConfig(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}

	res, err := sheets.NewExporter(client).Push(ctx, contentType, data, header)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Appended %d rows to %s\n", res.Rows, res.Range)
	return nil
}
