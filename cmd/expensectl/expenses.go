package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

func runExpenses(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: expensectl expenses list|get|add|update|delete")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return listExpenses(ctx, a, rest)
	case "get":
		return getExpense(ctx, a, rest)
	case "add":
		return addExpense(ctx, a, rest)
	case "update":
		return updateExpense(ctx, a, rest)
	case "delete":
		return deleteExpense(ctx, a, rest)
	default:
		return fmt.Errorf("unknown expenses subcommand %q", sub)
	}
}

func listExpenses(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("expenses list")
	page := fs.Int("page", 0, "page number (0-based)")
	size := fs.Int("size", 20, "page size")
	category := fs.Int64("category", 0, "category ID")
	currency := fs.String("currency", "", "currency code")
	tags := fs.String("tags", "", "tags")
	dates := dateRangeFlags(fs)
	var lo, hi amountFlag
	fs.Var(&lo, "min", "minimum amount")
	fs.Var(&hi, "max", "maximum amount")
	if err := fs.Parse(args); err != nil {
		return err
	}

	set := setFlags(fs)
	r := dates()
	f := core.ExpenseFilter{
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		MinAmount: lo.amount,
		MaxAmount: hi.amount,
	}
	if set["page"] {
		f.Page = page
	}
	if set["size"] {
		f.Size = size
	}
	if set["category"] {
		f.CategoryID = category
	}
	if set["currency"] {
		code := strings.ToUpper(*currency)
		f.Currency = &code
	}
	if set["tags"] {
		f.Tags = tags
	}

	result, err := a.client.ListExpenses(ctx, f)
	if err != nil {
		return err
	}
	a.printExpenses(ctx, result.Content)
	if result.TotalPages > 1 {
		fmt.Fprintf(a.stdout, "Page %d of %d (%d expenses)\n", result.Number+1, result.TotalPages, result.TotalElements)
	}
	return nil
}

func (a *app) printExpenses(ctx context.Context, expenses []core.Expense) {
	if len(expenses) == 0 {
		fmt.Fprintln(a.stdout, "No expenses found")
		return
	}
	tw := a.table()
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tAMOUNT\tCATEGORY\tSTATUS\tREIMBURSABLE")
	for _, e := range expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			idString(e.ID), e.Date, e.Title, e.Amount.Format(e.CurrencyCode),
			a.categoryLabel(ctx, e.CategoryID), e.Status, yesNo(e.IsReimbursable))
	}
	tw.Flush()
}

// categoryLabel resolves a category name through the cached catalog and
// falls back to the bare ID. After one failed lookup the command stops
// asking.
func (a *app) categoryLabel(ctx context.Context, id *int64) string {
	if id == nil {
		return "-"
	}
	fallback := "#" + strconv.FormatInt(*id, 10)
	if a.catalogErr != nil {
		return fallback
	}
	name, ok, err := a.catalog.CategoryName(ctx, *id)
	if err != nil {
		a.catalogErr = err
		a.logger.DebugContext(ctx, "Category lookup failed", log.FieldCategoryID, *id, log.FieldError, err)
	}
	if !ok {
		return fallback
	}
	return name
}

func getExpense(ctx context.Context, a *app, args []string) error {
	id, _, err := splitID(args, "expense")
	if err != nil {
		return err
	}
	e, err := a.client.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	a.printExpense(ctx, e)
	return nil
}

func (a *app) printExpense(ctx context.Context, e *core.Expense) {
	tw := a.table()
	fmt.Fprintf(tw, "ID:\t%s\n", idString(e.ID))
	fmt.Fprintf(tw, "Title:\t%s\n", e.Title)
	if e.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", e.Description)
	}
	fmt.Fprintf(tw, "Amount:\t%s\n", e.Amount.Format(e.CurrencyCode))
	fmt.Fprintf(tw, "Date:\t%s\n", e.Date)
	fmt.Fprintf(tw, "Category:\t%s\n", a.categoryLabel(ctx, e.CategoryID))
	if e.Location != "" {
		fmt.Fprintf(tw, "Location:\t%s\n", e.Location)
	}
	if e.Tags != "" {
		fmt.Fprintf(tw, "Tags:\t%s\n", e.Tags)
	}
	fmt.Fprintf(tw, "Reimbursable:\t%s\n", yesNo(e.IsReimbursable))
	if e.Status != "" {
		fmt.Fprintf(tw, "Status:\t%s\n", e.Status)
	}
	if e.ReceiptImageURL != "" {
		fmt.Fprintf(tw, "Receipt:\t%s\n", e.ReceiptImageURL)
	}
	tw.Flush()
}

// expenseFlags binds the editable expense fields.
type expenseFlags struct {
	fs           *flag.FlagSet
	title        *string
	description  *string
	amount       amountFlag
	currency     *string
	date         dateFlag
	category     *int64
	location     *string
	tags         *string
	reimbursable *bool
	status       *string
}

func newExpenseFlags(fs *flag.FlagSet, defaultCurrency string) *expenseFlags {
	f := &expenseFlags{fs: fs}
	f.title = fs.String("title", "", "title")
	f.description = fs.String("description", "", "description")
	fs.Var(&f.amount, "amount", "amount, e.g. 12.34")
	f.currency = fs.String("currency", defaultCurrency, "currency code")
	fs.Var(&f.date, "date", "date (YYYY-MM-DD, default today)")
	f.category = fs.Int64("category", 0, "category ID")
	f.location = fs.String("location", "", "location")
	f.tags = fs.String("tags", "", "tags")
	f.reimbursable = fs.Bool("reimbursable", false, "mark as reimbursable")
	f.status = fs.String("status", "", "status (PENDING, APPROVED, REJECTED)")
	return f
}

// apply copies the flags given on the command line onto e.
func (f *expenseFlags) apply(e *core.Expense) {
	set := setFlags(f.fs)
	if set["title"] {
		e.Title = *f.title
	}
	if set["description"] {
		e.Description = *f.description
	}
	if f.amount.amount != nil {
		e.Amount = *f.amount.amount
	}
	if set["currency"] || e.CurrencyCode == "" {
		e.CurrencyCode = strings.ToUpper(*f.currency)
	}
	if f.date.date != nil {
		e.Date = *f.date.date
	}
	if set["category"] {
		if *f.category > 0 {
			e.CategoryID = f.category
		} else {
			e.CategoryID = nil
		}
	}
	if set["location"] {
		e.Location = *f.location
	}
	if set["tags"] {
		e.Tags = *f.tags
	}
	if set["reimbursable"] {
		e.IsReimbursable = *f.reimbursable
	}
	if set["status"] {
		e.Status = core.Status(strings.ToUpper(*f.status))
	}
}

func addExpense(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("expenses add")
	flags := newExpenseFlags(fs, a.cfg.DefaultCurrency)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if flags.amount.amount == nil {
		return errors.New("missing required flag: -amount")
	}

	now := time.Now()
	e := core.Expense{Date: core.NewDate(now.Year(), int(now.Month()), now.Day())}
	flags.apply(&e)
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid expense: %w", err)
	}

	created, err := a.client.CreateExpense(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Created expense %s\n", idString(created.ID))
	return nil
}

func updateExpense(ctx context.Context, a *app, args []string) error {
	id, rest, err := splitID(args, "expense")
	if err != nil {
		return err
	}
	fs := a.flagSet("expenses update")
	flags := newExpenseFlags(fs, a.cfg.DefaultCurrency)
	if err := fs.Parse(rest); err != nil {
		return err
	}

	current, err := a.client.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	e := *current
	flags.apply(&e)
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid expense: %w", err)
	}

	if _, err := a.client.UpdateExpense(ctx, id, e); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Updated expense %d\n", id)
	return nil
}

func deleteExpense(ctx context.Context, a *app, args []string) error {
	id, _, err := splitID(args, "expense")
	if err != nil {
		return err
	}
	if err := a.client.DeleteExpense(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted expense %d\n", id)
	return nil
}

func runReimbursable(ctx context.Context, a *app, _ []string) error {
	expenses, err := a.client.ReimbursableExpenses(ctx)
	if err != nil {
		return err
	}
	a.printExpenses(ctx, expenses)
	if len(expenses) > 0 {
		fmt.Fprintf(a.stdout, "%d reimbursable expenses\n", len(expenses))
	}
	return nil
}

func idString(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
