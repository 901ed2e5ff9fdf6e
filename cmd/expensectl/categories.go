package main

import (
	"context"
	"errors"
	"fmt"

	"expensetracker/internal/core"
)

func runCategories(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return listCategories(ctx, a)
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return listCategories(ctx, a)
	case "add":
		return addCategory(ctx, a, rest)
	case "update":
		return updateCategory(ctx, a, rest)
	case "delete":
		return deleteCategory(ctx, a, rest)
	default:
		return fmt.Errorf("unknown categories subcommand %q", sub)
	}
}

func listCategories(ctx context.Context, a *app) error {
	cats, err := a.catalog.Categories(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		fmt.Fprintln(a.stdout, "No categories")
		return nil
	}

	tw := a.table()
	fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION\tDEFAULT")
	for _, c := range cats {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Description, yesNo(c.IsDefault))
	}
	return tw.Flush()
}

type categoryFlags struct {
	name        *string
	description *string
	icon        *string
	color       *string
}

func bindCategoryFlags(a *app, name string) (*categoryFlags, func([]string) (map[string]bool, error)) {
	fs := a.flagSet(name)
	f := &categoryFlags{
		name:        fs.String("name", "", "category name"),
		description: fs.String("description", "", "description"),
		icon:        fs.String("icon", "", "icon"),
		color:       fs.String("color", "", "color, e.g. #ff8800"),
	}
	return f, func(args []string) (map[string]bool, error) {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return setFlags(fs), nil
	}
}

func addCategory(ctx context.Context, a *app, args []string) error {
	f, parse := bindCategoryFlags(a, "categories add")
	if _, err := parse(args); err != nil {
		return err
	}

	cat := core.Category{
		Name:        *f.name,
		Description: *f.description,
		Icon:        *f.icon,
		Color:       *f.color,
	}
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}

	created, err := a.catalog.CreateCategory(ctx, cat)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Created category %d (%s)\n", created.ID, created.Name)
	return nil
}

func updateCategory(ctx context.Context, a *app, args []string) error {
	id, rest, err := splitID(args, "category")
	if err != nil {
		return err
	}
	f, parse := bindCategoryFlags(a, "categories update")
	set, err := parse(rest)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return errors.New("nothing to update")
	}

	cats, err := a.catalog.Categories(ctx)
	if err != nil {
		return err
	}
	var cat *core.Category
	for i := range cats {
		if cats[i].ID == id {
			cat = &cats[i]
			break
		}
	}
	if cat == nil {
		return fmt.Errorf("category %d not found", id)
	}

	updated := *cat
	if set["name"] {
		updated.Name = *f.name
	}
	if set["description"] {
		updated.Description = *f.description
	}
	if set["icon"] {
		updated.Icon = *f.icon
	}
	if set["color"] {
		updated.Color = *f.color
	}
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}

	if _, err := a.catalog.UpdateCategory(ctx, id, updated); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Updated category %d\n", id)
	return nil
}

func deleteCategory(ctx context.Context, a *app, args []string) error {
	id, _, err := splitID(args, "category")
	if err != nil {
		return err
	}
	if err := a.catalog.DeleteCategory(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted category %d\n", id)
	return nil
}

func runCurrencies(ctx context.Context, a *app, _ []string) error {
	codes, err := a.catalog.Currencies(ctx)
	if err != nil {
		return err
	}
	for _, code := range codes {
		marker := ""
		if code == a.cfg.DefaultCurrency {
			marker = " (default)"
		}
		fmt.Fprintf(a.stdout, "%s%s\n", code, marker)
	}
	return nil
}
