// Command expensectl is the command-line front-end of the expense tracker API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"expensetracker/internal/api"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/session"
	"expensetracker/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

func errorHint(err error) string {
	if api.IsUnauthorized(err) || errors.Is(err, session.ErrNoToken) {
		return "Not signed in or session expired: run `expensectl login`."
	}
	if errors.Is(err, api.ErrTransport) {
		return "Could not reach the API, check API_BASE_URL."
	}
	return ""
}

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":        {"login -user NAME [-password PW]", runLogin},
	"register":     {"register -user NAME [-password PW] [-first F] [-last L] [-currency C]", runRegister},
	"logout":       {"logout", runLogout},
	"whoami":       {"whoami", runWhoami},
	"profile":      {"profile [-email E] [-first F] [-last L] [-currency C]", runProfile},
	"expenses":     {"expenses list|get|add|update|delete ...", runExpenses},
	"reimbursable": {"reimbursable", runReimbursable},
	"scan":         {"scan [-commit] [-currency C] FILE", runScan},
	"upload":       {"upload EXPENSE_ID FILE", runUpload},
	"enqueue":      {"enqueue [-commit] [-currency C] [-expense ID] FILE", runEnqueue},
	"stats":        {"stats [-from DATE] [-to DATE]", runStats},
	"by-category":  {"by-category [-from DATE] [-to DATE]", runByCategory},
	"trend":        {"trend [-from DATE] [-to DATE]", runTrend},
	"categories":   {"categories list|add|update|delete ...", runCategories},
	"currencies":   {"currencies", runCurrencies},
	"export":       {"export [-from DATE] [-to DATE] [-category ID] [-out FILE | -sheets]", runExport},
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return errors.New("missing command")
	}
	name, rest := args[0], args[1:]
	switch name {
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		usage(stderr)
		return fmt.Errorf("unknown command %q", name)
	}

	a, err := newApp(stdin, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, a, rest)
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: expensectl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
}

// app holds what every command needs: configuration, the persisted session
// and the API client.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	logger  *log.Logger
	state   *storage.StateStore
	client  *api.Client
	catalog *cache.Catalog

	// catalogErr remembers a failed category lookup for the rest of the command.
	catalogErr error
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	cli.LoadEnvFile()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, stderr).WithComponent(log.ComponentCLI)

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return nil, err
	}
	state, err := cli.OpenState(logger, cfg.StateDBPath)
	if err != nil {
		return nil, err
	}
	client, err := cli.NewAPIClient(cfg, state, logger)
	if err != nil {
		_ = state.Close()
		return nil, err
	}

	return &app{
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		cfg:     cfg,
		logger:  logger,
		state:   state,
		client:  client,
		catalog: cache.NewCatalog(client, cfg.CacheTTL, nil),
	}, nil
}

func (a *app) Close() {
	if err := a.state.Close(); err != nil {
		a.logger.Error("Failed to close client state", log.FieldError, err)
	}
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// readPassword reads without echo from a terminal and falls back to a plain
// line for pipes and tests.
func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// splitID takes a leading numeric argument so that flags may follow it.
func splitID(args []string, what string) (int64, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return 0, nil, fmt.Errorf("missing %s ID", what)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("invalid %s ID %q", what, args[0])
	}
	return id, args[1:], nil
}

// dateFlag is an optional YYYY-MM-DD flag.
type dateFlag struct {
	date *core.Date
}

func (f *dateFlag) String() string {
	if f.date == nil {
		return ""
	}
	return f.date.String()
}

func (f *dateFlag) Set(s string) error {
	d, err := core.ParseDate(s)
	if err != nil {
		return err
	}
	f.date = &d
	return nil
}

// amountFlag is an optional amount flag accepting "12.34" or "12,34".
type amountFlag struct {
	amount *core.Money
}

func (f *amountFlag) String() string {
	if f.amount == nil {
		return ""
	}
	return f.amount.StringFixed(2)
}

func (f *amountFlag) Set(s string) error {
	m, err := core.ParseAmount(s)
	if err != nil {
		return err
	}
	f.amount = &m
	return nil
}

func dateRangeFlags(fs *flag.FlagSet) func() core.DateRange {
	var from, to dateFlag
	fs.Var(&from, "from", "start date (YYYY-MM-DD)")
	fs.Var(&to, "to", "end date (YYYY-MM-DD)")
	return func() core.DateRange {
		return core.DateRange{StartDate: from.date, EndDate: to.date}
	}
}

// setFlags reports which flags were given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}
