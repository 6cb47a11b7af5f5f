// Command registrar-cli runs operator tasks against the registrar store:
// term-end processing, transcript printouts, term GPA listings and token
// issuance for service accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/noah-isme/registrar-api/internal/app"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/config"
	"github.com/noah-isme/registrar-api/pkg/logger"
)

const usage = `usage: registrar-cli <command> [flags]

commands:
  term-end    -term <id> [-actor <staff id>]   lock the term and record academic standing
  transcript  -student <id>                     print a student's transcript
  gpas        -term <id>                        list per-student GPA for a term
  token       -id <principal> -roles <r1,r2>    issue an access token
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		color.Red("failed to load config: %v", err)
		os.Exit(1)
	}
	cfg.Notifications.Enabled = false

	logr, err := logger.New(cfg)
	if err != nil {
		color.Red("failed to init logger: %v", err)
		os.Exit(1)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.New(cfg, logr)
	if err != nil {
		color.Red("failed to build application: %v", err)
		os.Exit(1)
	}
	err = run(ctx, core, os.Stdout, os.Args[1], os.Args[2:])
	if closeErr := core.Close(context.Background()); closeErr != nil {
		color.Yellow("failed to release resources: %v", closeErr)
	}
	if err != nil {
		color.Red("%s: %v", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, core *app.App, out io.Writer, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(out)

	switch command {
	case "term-end":
		termID := fs.String("term", "", "term id")
		actor := fs.String("actor", "registrar-cli", "staff principal recorded in the audit trail")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *termID == "" {
			return fmt.Errorf("-term is required")
		}
		principal := &models.Principal{ID: *actor, Roles: []models.Role{models.RoleStaff}}
		report, err := core.Standing.ProcessTermEnd(ctx, principal, *termID)
		if err != nil {
			return err
		}
		renderTermEnd(out, report)

	case "transcript":
		studentID := fs.String("student", "", "student id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *studentID == "" {
			return fmt.Errorf("-student is required")
		}
		principal := &models.Principal{ID: "registrar-cli", Roles: []models.Role{models.RoleStaff}}
		transcript, err := core.Transcripts.GetFullTranscript(ctx, principal, *studentID)
		if err != nil {
			return err
		}
		renderTranscript(out, transcript)

	case "gpas":
		termID := fs.String("term", "", "term id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *termID == "" {
			return fmt.Errorf("-term is required")
		}
		gpas, err := core.Transcripts.TermGPAs(ctx, *termID)
		if err != nil {
			return err
		}
		renderTermGPAs(out, *termID, gpas)

	case "token":
		id := fs.String("id", "", "principal id")
		roles := fs.String("roles", "", "comma separated roles")
		if err := fs.Parse(args); err != nil {
			return err
		}
		principal, err := parsePrincipal(*id, *roles)
		if err != nil {
			return err
		}
		token, expiresAt, err := core.Auth.IssueToken(*principal)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, token)
		color.New(color.FgHiBlack).Fprintf(out, "expires %s\n", expiresAt.Format(time.RFC3339))

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
	return nil
}

var knownRoles = map[models.Role]struct{}{
	models.RoleStudent:        {},
	models.RoleInstructor:     {},
	models.RoleStaff:          {},
	models.RoleDepartmentHead: {},
	models.RoleAdmin:          {},
}

func parsePrincipal(id, rawRoles string) (*models.Principal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("-id is required")
	}
	principal := &models.Principal{ID: id}
	for _, part := range strings.Split(rawRoles, ",") {
		role := models.Role(strings.ToUpper(strings.TrimSpace(part)))
		if role == "" {
			continue
		}
		if _, ok := knownRoles[role]; !ok {
			return nil, fmt.Errorf("unknown role %q", role)
		}
		principal.Roles = append(principal.Roles, role)
	}
	if len(principal.Roles) == 0 {
		return nil, fmt.Errorf("-roles is required")
	}
	return principal, nil
}
