package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/session"
)

func promptPassword(a *app, given string) (string, error) {
	if given != "" {
		return given, nil
	}
	fmt.Fprint(a.stdout, "Password: ")
	password, err := readPassword(a.stdin)
	fmt.Fprintln(a.stdout)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("login")
	username := fs.String("user", "", "username")
	passwordFlag := fs.String("password", "", "password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("missing required flag: -user")
	}

	password, err := promptPassword(a, *passwordFlag)
	if err != nil {
		return err
	}

	s, err := a.client.Login(ctx, core.Credentials{Username: *username, Password: password})
	if err != nil {
		return err
	}
	name := s.Username
	if name == "" {
		name = *username
	}
	fmt.Fprintf(a.stdout, "Logged in as %s\n", name)
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("register")
	username := fs.String("user", "", "username")
	passwordFlag := fs.String("password", "", "password (prompted when omitted)")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	currency := fs.String("currency", "", "default currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("missing required flag: -user")
	}
	if *currency != "" {
		if err := core.ValidateCurrencyCode(strings.ToUpper(*currency)); err != nil {
			return err
		}
	}

	password, err := promptPassword(a, *passwordFlag)
	if err != nil {
		return err
	}

	s, err := a.client.Register(ctx, core.Registration{
		Username:        *username,
		Password:        password,
		FirstName:       *first,
		LastName:        *last,
		DefaultCurrency: strings.ToUpper(*currency),
	})
	if err != nil {
		return err
	}
	if s.Token == "" {
		fmt.Fprintf(a.stdout, "Registered %s, run `expensectl login` to sign in\n", *username)
		return nil
	}
	fmt.Fprintf(a.stdout, "Registered and logged in as %s\n", *username)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Logged out")
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	token, err := session.Require(ctx, a.state)
	if err != nil {
		return err
	}

	p, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	printProfile(a, p)

	// Opaque tokens carry no claims to show.
	if claims, err := session.Inspect(token); err == nil && !claims.ExpiresAt.IsZero() {
		status := "valid"
		if claims.Expired(time.Now()) {
			status = "expired"
		}
		fmt.Fprintf(a.stdout, "Session:\t%s until %s\n", status, claims.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func printProfile(a *app, p *core.Profile) {
	tw := a.table()
	fmt.Fprintf(tw, "User:\t%s (%s)\n", p.DisplayName(), p.Username)
	if p.Email != "" {
		fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	}
	if p.DefaultCurrency != "" {
		fmt.Fprintf(tw, "Currency:\t%s\n", p.DefaultCurrency)
	}
	tw.Flush()
}

func runProfile(ctx context.Context, a *app, args []string) error {
	fs := a.flagSet("profile")
	email := fs.String("email", "", "email address")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	currency := fs.String("currency", "", "default currency code")
	if err := fs.Parse(args); err != nil {
		return err
	}

	set := setFlags(fs)
	if len(set) == 0 {
		p, err := a.client.Profile(ctx)
		if err != nil {
			return err
		}
		printProfile(a, p)
		return nil
	}

	var u core.ProfileUpdate
	if set["email"] {
		u.Email = email
	}
	if set["first"] {
		u.FirstName = first
	}
	if set["last"] {
		u.LastName = last
	}
	if set["currency"] {
		code := strings.ToUpper(*currency)
		if err := core.ValidateCurrencyCode(code); err != nil {
			return err
		}
		u.DefaultCurrency = &code
	}

	p, err := a.client.UpdateProfile(ctx, u)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Profile updated")
	printProfile(a, p)
	return nil
}
