package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/receipt"
)

func (a *app) newFlow(currency string) *receipt.Flow {
	if currency == "" {
		currency = a.cfg.DefaultCurrency
	}
	return receipt.NewFlow(a.client,
		receipt.WithLogger(a.logger),
		receipt.WithCurrency(strings.ToUpper(currency)),
		receipt.WithNotifier(receipt.NewWriterNotifier(a.stdout)),
	)
}

func fileArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expected exactly one receipt file")
	}
	return args[0], nil
}

func runScan(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("scan")
	commit := fs.Bool("commit", a.cfg.ReceiptAutoCommit, "create an expense from the scanned receipt")
	currency := fs.String("currency", a.cfg.DefaultCurrency, "currency of the created expense")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := fileArg(fs.Args())
	if err != nil {
		return err
	}
	code := strings.ToUpper(*currency)
	if err := core.ValidateCurrencyCode(code); err != nil {
		return err
	}

	file, err := receipt.LoadFile(path)
	if err != nil {
		return err
	}

	flow := a.newFlow(code)
	data, err := flow.Select(ctx, file)
	if err != nil {
		return err
	}
	printReceipt(a, data, code)

	if !*commit {
		draft := receipt.Draft(*data, code)
		fmt.Fprintf(a.stdout, "Draft: %s, %s on %s (use -commit to create it)\n",
			draft.Title, draft.Amount.Format(draft.CurrencyCode), draft.Date)
		return nil
	}

	created, err := flow.Commit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Created expense %s\n", idString(created.ID))
	return nil
}

func printReceipt(a *app, data *core.ReceiptData, currency string) {
	tw := a.table()
	merchant := data.MerchantName
	if merchant == "" {
		merchant = "-"
	}
	fmt.Fprintf(tw, "Merchant:\t%s\n", merchant)
	fmt.Fprintf(tw, "Total:\t%s\n", data.TotalAmount.Format(currency))
	if !data.TaxAmount.IsZero() {
		fmt.Fprintf(tw, "Tax:\t%s\n", data.TaxAmount.Format(currency))
	}
	if !data.Date.IsZero() {
		fmt.Fprintf(tw, "Date:\t%s\n", data.Date)
	}
	fmt.Fprintf(tw, "Confidence:\t%.1f%%\n", data.Confidence)
	tw.Flush()

	if len(data.Items) == 0 {
		return
	}
	tw = a.table()
	fmt.Fprintln(tw, "ITEM\tQTY\tPRICE")
	for _, item := range data.Items {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", item.Name, item.Quantity, item.Price.Format(currency))
	}
	tw.Flush()
}

func runUpload(ctx context.Context, a *app, args []string) error {
	id, rest, err := splitID(args, "expense")
	if err != nil {
		return err
	}
	path, err := fileArg(rest)
	if err != nil {
		return err
	}
	file, err := receipt.LoadFile(path)
	if err != nil {
		return err
	}

	updated, err := a.newFlow("").Attach(ctx, id, file)
	if err != nil {
		return err
	}
	if updated.ReceiptImageURL != "" {
		fmt.Fprintf(a.stdout, "Receipt: %s\n", updated.ReceiptImageURL)
	}
	return nil
}

// runEnqueue publishes a receipt to the inbox for the receipt worker.
func runEnqueue(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("enqueue")
	commit := fs.Bool("commit", false, "ask the worker to create an expense")
	currency := fs.String("currency", "", "currency of the created expense (worker default when empty)")
	expenseID := fs.Int64("expense", 0, "attach to this expense instead of scanning")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := fileArg(fs.Args())
	if err != nil {
		return err
	}
	if err := a.cfg.RequireAMQP(); err != nil {
		return err
	}

	file, err := receipt.LoadFile(path)
	if err != nil {
		return err
	}

	msg := amqp.NewReceiptUploadMessage(file.Name, file.Data)
	msg.AutoCommit = *commit
	if *currency != "" {
		code := strings.ToUpper(*currency)
		if err := core.ValidateCurrencyCode(code); err != nil {
			return err
		}
		msg.Currency = code
	}
	if *expenseID > 0 {
		msg.ExpenseID = expenseID
	}

	client, err := amqp.NewClient(ctx, a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue, amqp.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			a.logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
	}()

	if err := client.PublishReceiptUpload(ctx, msg); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Queued %s as message %s\n", file.Name, msg.ID)
	return nil
}
