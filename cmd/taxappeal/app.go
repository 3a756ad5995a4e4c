package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/taxappeal-client/apiclient"
	"github.com/jrsteele09/taxappeal-client/auth"
	"github.com/jrsteele09/taxappeal-client/credentials"
	"github.com/jrsteele09/taxappeal-client/internal/config"
	apperrors "github.com/jrsteele09/taxappeal-client/internal/errors"
	"github.com/jrsteele09/taxappeal-client/taxappeal"
	"github.com/rs/zerolog/log"
)

const usage = `Usage: taxappeal <command> [flags]

Commands:
  login -email <email>   log in (password from TAXAPPEAL_PASSWORD or stdin)
  logout                 end the session
  whoami                 show the logged in staff member
  refresh                refresh the access token now
  get <path>             GET an API path and print the body
  cases                  list my cases
  agenda [-page n]       list the committee agenda
  meeting                create a video meeting
`

type app struct {
	cfg    config.Config
	client *apiclient.Client
	auth   *auth.Service
	api    *taxappeal.Service

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(cfg config.Config, store credentials.Store, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	a := &app{cfg: cfg, stdin: stdin, stdout: stdout, stderr: stderr}

	rps, burst := cfg.GetRateLimit()
	client, err := apiclient.New(cfg.GetAPIURL(), store,
		apiclient.WithNavigator(apiclient.NavigatorFunc(a.redirectToLogin)),
		apiclient.WithLogger(log.Logger),
		apiclient.WithRequestTimeout(cfg.GetRequestTimeout()),
		apiclient.WithRefreshTimeout(cfg.GetRefreshTimeout()),
		apiclient.WithRateLimit(rps, burst),
		// A wrong password is reported by the login command itself, not as
		// an ended session.
		apiclient.WithRefreshExemptPaths(apiclient.MeetingCreatePath, apiclient.LoginPath),
	)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.auth = auth.NewService(client)
	a.api = taxappeal.New(client)
	return a, nil
}

// redirectToLogin is the CLI's login screen: tell the user how to get back in.
func (a *app) redirectToLogin(_ context.Context, reason error) {
	if errors.Is(reason, auth.ErrLoggedOut) {
		return
	}
	fmt.Fprintf(a.stderr, "Your session has ended (%v). Run `taxappeal login` to sign in again (%s).\n",
		reason, a.cfg.GetLoginPath())
}

func (a *app) execute(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.printUsage()
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		a.auth.Logout(ctx)
		fmt.Fprintln(a.stdout, "Logged out.")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "refresh":
		if err := a.client.Refresh(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, "Access token refreshed.")
		return nil
	case "get":
		return a.get(ctx, rest)
	case "cases":
		return a.cases(ctx)
	case "agenda":
		return a.agenda(ctx, rest)
	case "meeting":
		return a.meeting(ctx)
	default:
		a.printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) printUsage() {
	fmt.Fprintln(a.stdout, figure.NewFigure(a.cfg.GetAppName(), "cybermedium", true).String())
	fmt.Fprint(a.stdout, usage)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	email := fs.String("email", "", "staff email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := a.readPassword()
	if err != nil {
		return err
	}
	session, err := a.auth.Login(ctx, *email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Welcome %s (%s).\n", session.FullNames, session.Role)
	if session.IsProxy {
		fmt.Fprintln(a.stdout, "You are signed in as a proxy.")
	}
	return nil
}

func (a *app) readPassword() (string, error) {
	if p := os.Getenv("TAXAPPEAL_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(a.stderr, "Password: ")
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) whoami(ctx context.Context) error {
	id, err := a.auth.Whoami(ctx)
	if errors.Is(err, apperrors.ErrNotLoggedIn) {
		fmt.Fprintln(a.stdout, "Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name\t%s\n", id.Session.FullNames)
	fmt.Fprintf(w, "Staff ID\t%s\n", id.Session.StaffID)
	fmt.Fprintf(w, "Role\t%s\n", id.Session.Role)
	fmt.Fprintf(w, "Proxy\t%t\n", id.Session.IsProxy)
	if id.Claims != nil {
		fmt.Fprintf(w, "Email\t%s\n", id.Claims.Email)
		if left := id.ExpiresIn(a.auth.Now()); left > 0 {
			fmt.Fprintf(w, "Token expires in\t%s\n", left.Round(time.Second))
		} else {
			fmt.Fprintf(w, "Token expires in\texpired\n")
		}
	}
	return w.Flush()
}

func (a *app) get(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("get takes exactly one path")
	}
	path := args[0]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	resp, err := a.client.Do(ctx, &apiclient.Request{Path: path})
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(resp.Body)
	if err == nil && len(resp.Body) > 0 && resp.Body[len(resp.Body)-1] != '\n' {
		_, err = fmt.Fprintln(a.stdout)
	}
	return err
}

func (a *app) cases(ctx context.Context) error {
	cases, err := a.api.MyCases(ctx)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		fmt.Fprintln(a.stdout, "No cases.")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CASE\tTAXPAYER\tSUBMITTED\tDAYS LEFT\tSTATUS")
	for _, c := range cases {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.CaseID, c.TaxPayer, c.SubmittedAt, c.DaysLeft, c.Status)
	}
	return w.Flush()
}

func (a *app) agenda(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("agenda", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	page := fs.Int("page", 0, "page number, from zero")
	size := fs.Int("size", 10, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := a.api.Agenda(ctx, taxappeal.PageRequest{Page: *page, Size: *size})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CASE\tTAXPAYER\tTIN\tAPPEAL DATE\tDAYS LEFT\tSTATUS")
	for _, c := range p.Content {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", c.CaseID, c.TaxpayerName, c.TIN, c.AppealDate, c.DaysLeft, c.CaseStatus)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Page %d of %d (%d cases)\n", p.Number+1, max(p.TotalPages, 1), p.TotalElements)
	return nil
}

func (a *app) meeting(ctx context.Context) error {
	link, err := a.api.CreateMeeting(ctx)
	var authErr *taxappeal.CalendarAuthorizationError
	if errors.As(err, &authErr) {
		fmt.Fprintf(a.stdout, "Google Calendar access is needed. Open %s, then run this command again.\n", authErr.URL)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Meeting created: %s\n", link)
	return nil
}
