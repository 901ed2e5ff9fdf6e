package main

import (
	"context"
	"fmt"
)

func runStats(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("stats")
	dates := dateRangeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	stats, err := a.client.Statistics(ctx, dates())
	if err != nil {
		return err
	}

	tw := a.table()
	if !stats.Period.StartDate.IsZero() || !stats.Period.EndDate.IsZero() {
		fmt.Fprintf(tw, "Period:\t%s to %s\n", stats.Period.StartDate, stats.Period.EndDate)
	}
	fmt.Fprintf(tw, "Total spending:\t%s\n", stats.TotalSpending.Format(a.cfg.DefaultCurrency))
	fmt.Fprintf(tw, "Daily average:\t%s\n", stats.AverageDailySpending.Format(a.cfg.DefaultCurrency))
	fmt.Fprintf(tw, "Expenses:\t%d\n", stats.TotalExpenses)
	return tw.Flush()
}

func runByCategory(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("by-category")
	dates := dateRangeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	spending, err := a.client.SpendingByCategory(ctx, dates())
	if err != nil {
		return err
	}
	if len(spending.Categories) == 0 {
		fmt.Fprintln(a.stdout, "No spending in this period")
		return nil
	}

	tw := a.table()
	fmt.Fprintln(tw, "CATEGORY\tCOUNT\tAMOUNT\tSHARE")
	for _, c := range spending.Categories {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.1f%%\n",
			c.CategoryName, c.Count, c.TotalAmount.Format(a.cfg.DefaultCurrency), spending.Share(c))
	}
	fmt.Fprintf(tw, "Total\t\t%s\t\n", spending.TotalAmount.Format(a.cfg.DefaultCurrency))
	return tw.Flush()
}

func runTrend(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("trend")
	dates := dateRangeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	trend, err := a.client.SpendingTrend(ctx, dates())
	if err != nil {
		return err
	}
	if len(trend.Trends) == 0 {
		fmt.Fprintln(a.stdout, "No spending in this period")
		return nil
	}

	tw := a.table()
	fmt.Fprintln(tw, "DATE\tCOUNT\tAMOUNT")
	for _, p := range trend.Trends {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.Date, p.Count, p.Amount.Format(a.cfg.DefaultCurrency))
	}
	fmt.Fprintf(tw, "Total\t\t%s\n", trend.Total().Format(a.cfg.DefaultCurrency))
	return tw.Flush()
}
