package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/subcommands"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/app"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/calculator"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/client"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/config"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

// env is shared by every subcommand.
type env struct {
	cfg    *config.Client
	logger *slog.Logger
	out    printer
	errOut io.Writer
}

// register adds every subcommand to c.
func register(c *subcommands.Commander, e *env) {
	c.Register(&registerCmd{env: e}, "account")
	c.Register(&loginCmd{env: e}, "account")
	c.Register(&logoutCmd{env: e}, "account")
	c.Register(&whoamiCmd{env: e}, "account")

	c.Register(&listCmd{env: e}, "records")
	c.Register(&addCmd{env: e}, "records")
	c.Register(&editCmd{env: e}, "records")
	c.Register(&rmCmd{env: e}, "records")
	c.Register(&summaryCmd{env: e}, "records")
}

// open builds the app and waits for the saved session to be checked. With
// sync set it also waits for both collections to load.
func (e *env) open(ctx context.Context, sync bool) (*app.App, error) {
	identity := client.NewIdentityClient(http.DefaultClient, e.cfg.ServerURL, client.NewTokenFile(e.cfg.SessionFile), e.logger)
	a := app.New(identity, client.NewDocumentClient(http.DefaultClient, e.cfg.ServerURL, identity), e.logger)
	if err := a.Start(); err != nil {
		return nil, err
	}

	wait := a.Session.WaitReady
	if sync {
		wait = a.WaitSynced
	}
	if err := wait(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// signedIn opens the app and fails unless someone is signed in.
func (e *env) signedIn(ctx context.Context) (*app.App, error) {
	a, err := e.open(ctx, true)
	if err != nil {
		return nil, err
	}
	if a.Session.Identity() == nil {
		a.Close()
		return nil, app.ErrNotSignedIn
	}
	return a, nil
}

// fail prints err for a human and returns the failure status.
func (e *env) fail(err error) subcommands.ExitStatus {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		for _, f := range verr.Fields {
			fmt.Fprintf(e.errOut, "Error: %s\n", f.Message)
		}
	case errors.Is(err, app.ErrNotSignedIn):
		fmt.Fprintln(e.errOut, "Error: not signed in, run 'budget login' first")
	case errors.Is(err, models.ErrNetwork):
		fmt.Fprintf(e.errOut, "Error: cannot reach %s\n", e.cfg.ServerURL)
	default:
		fmt.Fprintf(e.errOut, "Error: %v\n", err)
	}
	return subcommands.ExitFailure
}

func (e *env) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(e.errOut, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// collectionArg parses the first positional argument as a collection name.
func (e *env) collectionArg(f *flag.FlagSet) (models.Collection, error) {
	if f.NArg() < 1 {
		return "", errors.New("missing collection: items or costs")
	}
	return models.ParseCollection(f.Arg(0))
}

// registerCmd creates an account.
type registerCmd struct {
	*env
	email, password, name string
}

func (*registerCmd) Name() string     { return "register" }
func (*registerCmd) Synopsis() string { return "create an account and sign in" }
func (*registerCmd) Usage() string {
	return `budget register -email <email> -password <password> [-name <display name>]

  Creates an account on the server and keeps the session for later commands.
`
}

func (c *registerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email address")
	f.StringVar(&c.password, "password", "", "Password (at least 6 characters)")
	f.StringVar(&c.name, "name", "", "Display name")
}

func (c *registerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" || c.password == "" {
		return c.usage("-email and -password are required")
	}
	a, err := c.open(ctx, false)
	if err != nil {
		return c.fail(err)
	}
	defer a.Close()

	identity, err := a.Session.Register(ctx, c.email, c.password, c.name)
	if err != nil {
		return c.fail(err)
	}
	c.out.line("Signed in as %s", identity.Name())
	return subcommands.ExitSuccess
}

// loginCmd signs in with a password or a Google ID token.
type loginCmd struct {
	*env
	email, password, idToken string
	google                   bool
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in with email and password, or with Google" }
func (*loginCmd) Usage() string {
	return `budget login -email <email> -password <password>
budget login -google -id-token <token>

  Signs in and keeps the session for later commands.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Account email address")
	f.StringVar(&c.password, "password", "", "Password")
	f.BoolVar(&c.google, "google", false, "Sign in with a Google ID token")
	f.StringVar(&c.idToken, "id-token", "", "Google ID token (with -google)")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.google && (c.email == "" || c.password == "") {
		return c.usage("-email and -password are required")
	}
	a, err := c.open(ctx, false)
	if err != nil {
		return c.fail(err)
	}
	defer a.Close()

	var identity models.Identity
	if c.google {
		identity, err = a.Session.SignInFederated(ctx, c.idToken)
	} else {
		identity, err = a.Session.SignIn(ctx, c.email, c.password)
	}
	if err != nil {
		return c.fail(err)
	}
	c.out.line("Signed in as %s", identity.Name())
	return subcommands.ExitSuccess
}

type logoutCmd struct{ *env }

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "sign out and forget the saved session" }
func (*logoutCmd) Usage() string            { return "budget logout\n" }
func (*logoutCmd) SetFlags(f *flag.FlagSet) {}

func (c *logoutCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.open(ctx, false)
	if err != nil {
		return c.fail(err)
	}
	defer a.Close()

	if err := a.Session.SignOut(ctx); err != nil {
		return c.fail(err)
	}
	c.out.line("Signed out")
	return subcommands.ExitSuccess
}

type whoamiCmd struct{ *env }

func (*whoamiCmd) Name() string             { return "whoami" }
func (*whoamiCmd) Synopsis() string         { return "show the signed-in user" }
func (*whoamiCmd) Usage() string            { return "budget whoami\n" }
func (*whoamiCmd) SetFlags(f *flag.FlagSet) {}

func (c *whoamiCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.open(ctx, false)
	if err != nil {
		return c.fail(err)
	}
	defer a.Close()

	identity := a.Session.Identity()
	if identity == nil {
		return c.fail(app.ErrNotSignedIn)
	}
	c.out.line("%s <%s>", identity.Name(), identity.Email)
	return subcommands.ExitSuccess
}

// listCmd prints one collection.
type listCmd struct {
	*env
	filter string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list items or other costs" }
func (*listCmd) Usage() string {
	return `budget list [-filter <text>] items|costs

  Lists a collection in creation order. -filter keeps the records whose label
  contains the text and shows their subtotal.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.filter, "filter", "", "Only show records whose label contains this text")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	coll, err := c.collectionArg(f)
	if err != nil {
		return c.usage("%v", err)
	}
	a, err := c.signedIn(ctx)
	if err != nil {
		return c.fail(err)
	}
	defer a.Close()

	var view calculator.FilteredView
	if coll == models.CollectionCosts {
		view = a.CostsView(c.filter)
	} else {
		view = calculator.FilterByLabel(a.Items.Records(), c.filter)
	}
	c.out.markdown(recordsMarkdown(coll, view, newFormatter(c.cfg.Currency)))
	return subcommands.ExitSuccess
}

// addCmd creates a record.
type addCmd struct {
	*env
	label, amount string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add an item or other cost" }
func (*addCmd) Usage() string {
	return `budget add -label <label> -amount <amount> items|costs
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.label, "label", "", "Item name or cost description")
	f.StringVar(&c.amount, "amount", "", "Amount, e.g. 120.50")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	coll, err := c.collectionArg(f)
	if err != nil {
		return c.usage("%v", err)
	}
	amount, err := models.ParseAmount(c.amount)
	if err != nil {
		return c.fail(err)
	}
	draft := models.Draft{Label: c.label, Amount: amount}
	if err := draft.Validate(); err != nil {
		return c.fail(err)
	}

	a, err := c.signedIn(ctx)
	if err != nil {
		return c.fail(err)
	}
	defer a.Close()

	var record models.Record
	if coll == models.CollectionCosts {
		record, err = a.AddCost(ctx, draft)
	} else {
		record, err = a.AddItem(ctx, draft)
	}
	if err != nil {
		return c.fail(err)
	}
	c.out.line("Added %s (%s) as %s", record.Label, newFormatter(c.cfg.Currency).amount(record.Amount), record.ID)
	return subcommands.ExitSuccess
}

// editCmd updates some fields of a record.
type editCmd struct {
	*env
	id, label, amount string
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change the label or amount of a record" }
func (*editCmd) Usage() string {
	return `budget edit -id <id> [-label <label>] [-amount <amount>] items|costs

  Only the given fields are changed.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Record ID (see 'budget list')")
	f.StringVar(&c.label, "label", "", "New label")
	f.StringVar(&c.amount, "amount", "", "New amount")
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	coll, err := c.collectionArg(f)
	if err != nil {
		return c.usage("%v", err)
	}
	if c.id == "" {
		return c.usage("-id is required")
	}

	var patch models.Patch
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "label":
			patch.Label = models.LabelPtr(c.label)
		case "amount":
			if amount, perr := models.ParseAmount(c.amount); perr != nil {
				err = perr
			} else {
				patch.Amount = models.AmountPtr(amount)
			}
		}
	})
	if err != nil {
		return c.fail(err)
	}
	if err := patch.Validate(); err != nil {
		return c.fail(err)
	}

	a, err := c.signedIn(ctx)
	if err != nil {
		return c.fail(err)
	}
	defer a.Close()

	if coll == models.CollectionCosts {
		err = a.UpdateCost(ctx, c.id, patch)
	} else {
		err = a.UpdateItem(ctx, c.id, patch)
	}
	if err != nil {
		return c.fail(err)
	}
	c.out.line("Updated %s", c.id)
	return subcommands.ExitSuccess
}

// rmCmd deletes a record.
type rmCmd struct {
	*env
	id  string
	yes bool
}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete a record" }
func (*rmCmd) Usage() string {
	return `budget rm -id <id> -yes items|costs

  Deletes a record. -yes confirms the deletion.
`
}

func (c *rmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Record ID (see 'budget list')")
	f.BoolVar(&c.yes, "yes", false, "Confirm the deletion")
}

func (c *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	coll, err := c.collectionArg(f)
	if err != nil {
		return c.usage("%v", err)
	}
	if c.id == "" {
		return c.usage("-id is required")
	}
	if !c.yes {
		return c.usage("refusing to delete %s without -yes", c.id)
	}

	a, err := c.signedIn(ctx)
	if err != nil {
		return c.fail(err)
	}
	defer a.Close()

	if coll == models.CollectionCosts {
		err = a.RemoveCost(ctx, c.id)
	} else {
		err = a.RemoveItem(ctx, c.id)
	}
	if err != nil {
		return c.fail(err)
	}
	c.out.line("Deleted %s", c.id)
	return subcommands.ExitSuccess
}

type summaryCmd struct{ *env }

func (*summaryCmd) Name() string             { return "summary" }
func (*summaryCmd) Synopsis() string         { return "show project totals" }
func (*summaryCmd) Usage() string            { return "budget summary\n" }
func (*summaryCmd) SetFlags(f *flag.FlagSet) {}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := c.signedIn(ctx)
	if err != nil {
		return c.fail(err)
	}
	defer a.Close()

	c.out.markdown(summaryMarkdown(a.Dashboard(), newFormatter(c.cfg.Currency)))
	return subcommands.ExitSuccess
}
