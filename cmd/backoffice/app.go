package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/andresuchdata/backoffice/backend-go/internal/apperror"
	"github.com/andresuchdata/backoffice/backend-go/internal/auth"
	"github.com/andresuchdata/backoffice/backend-go/internal/client"
	"github.com/andresuchdata/backoffice/backend-go/internal/config"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/andresuchdata/backoffice/backend-go/internal/export"
	"github.com/urfave/cli/v2"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatXLSX  = "xlsx"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "backoffice",
		Usage: "Operate the backoffice API: backups, reports and tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Base URL of the backoffice API",
				Value:   client.DefaultBaseURL,
				EnvVars: []string{"BACKOFFICE_API_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token sent with every request",
				EnvVars: []string{"BACKOFFICE_TOKEN"},
			},
		},
		// Errors are reported once by main.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "Download or restore a full database backup",
				Subcommands: []*cli.Command{
					{
						Name:  "export",
						Usage: "Download a backup into a directory",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "out",
								Usage: "Directory the backup is written to",
								Value: ".",
							},
						},
						Action: runBackupExport,
					},
					{
						Name:  "restore",
						Usage: "Replace all data with the contents of a backup file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "file",
								Usage: "Backup file to upload",
							},
							&cli.BoolFlag{
								Name:  "yes",
								Usage: "Do not ask for confirmation",
							},
						},
						Action: runBackupRestore,
					},
				},
			},
			{
				Name:  "report",
				Usage: "Fetch reports",
				Subcommands: []*cli.Command{
					{
						Name:  "profit-loss",
						Usage: "Print the profit and loss summary",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "filter",
								Usage: "Reporting window: minggu, bulan or tahun",
								Value: string(domain.PeriodMonth),
							},
							&cli.StringFlag{
								Name:  "branch",
								Usage: "Restrict the report to one branch (cabang)",
							},
							&cli.StringFlag{
								Name:  "format",
								Usage: "Output format: table, json or xlsx",
								Value: formatTable,
							},
							&cli.StringFlag{
								Name:  "out",
								Usage: "Directory for the xlsx workbook",
								Value: ".",
							},
						},
						Action: runProfitLoss,
					},
				},
			},
			{
				Name:  "token",
				Usage: "Manage access tokens",
				Subcommands: []*cli.Command{
					{
						Name:  "issue",
						Usage: "Sign a token with the server's JWT_SECRET",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "user", Usage: "User ID (sub claim)"},
							&cli.StringFlag{Name: "username", Usage: "Display name"},
							&cli.StringFlag{Name: "role", Usage: "super_admin or admin_cabang", Value: domain.RoleSuperAdmin},
							&cli.StringFlag{Name: "branch", Usage: "Branch of an admin_cabang"},
						},
						Action: runTokenIssue,
					},
				},
			},
		},
	}
}

func clientConfig(c *cli.Context) client.Config {
	return client.Config{
		BaseURL: c.String("api-url"),
		Token:   c.String("token"),
	}
}

func runBackupExport(c *cli.Context) error {
	result, err := client.NewBackupClient(clientConfig(c)).ExportToDir(c.Context, c.String("out"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "backup saved to %s (%d bytes)\n", result.Path, result.Size)
	return nil
}

func runBackupRestore(c *cli.Context) error {
	path := strings.TrimSpace(c.String("file"))
	if path == "" {
		return apperror.New(apperror.KindValidation, apperror.MsgMissingBackup)
	}

	if !c.Bool("yes") {
		ok, err := confirm(c.App.Reader, c.App.Writer,
			fmt.Sprintf("Restoring %s replaces ALL data on %s. Continue? [y/N] ", filepath.Base(path), c.String("api-url")))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(c.App.Writer, "restore cancelled")
			return nil
		}
	}

	result, err := client.NewBackupClient(clientConfig(c)).RestoreFile(c.Context, path)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, result.Message)
	return nil
}

func runProfitLoss(c *cli.Context) error {
	format := strings.ToLower(strings.TrimSpace(c.String("format")))
	switch format {
	case formatTable, formatJSON, formatXLSX:
	default:
		return apperror.New(apperror.KindValidation, fmt.Sprintf("unknown format %q", format))
	}

	period := domain.ParseReportPeriod(c.String("filter"))
	summary, err := client.NewReportClient(clientConfig(c)).ProfitLoss(c.Context, period, c.String("branch"))
	if err != nil {
		return err
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case formatXLSX:
		path, err := writeWorkbook(c.String("out"), summary)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "report saved to %s\n", path)
		return nil
	default:
		return printSummary(c.App.Writer, summary)
	}
}

func runTokenIssue(c *cli.Context) error {
	tokens, err := auth.NewTokenService(config.Load().Auth)
	if err != nil {
		return apperror.Wrap(err, apperror.KindValidation, "JWT_SECRET must be set to issue tokens")
	}

	principal := domain.Principal{
		UserID:   c.String("user"),
		Username: c.String("username"),
		Role:     c.String("role"),
		BranchID: c.String("branch"),
	}
	if principal.Role == domain.RoleBranchAdmin && principal.BranchID == "" {
		return apperror.New(apperror.KindValidation, "a branch admin token needs --branch")
	}

	token, err := tokens.Issue(principal)
	if err != nil {
		return apperror.Wrap(err, apperror.KindValidation, "cannot issue token")
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

// confirm reads a yes/no answer; anything but y or yes is a no.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func printSummary(w io.Writer, s *domain.ProfitLossSummary) error {
	branch := s.BranchID
	if branch == "" {
		branch = "all branches"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Period\t%s (since %s)\t\n", s.Filter.Label(), s.PeriodStart.Format("2006-01-02 15:04"))
	fmt.Fprintf(tw, "Branch\t%s\t\n", branch)
	fmt.Fprintf(tw, "Revenue\t%s\t\n", s.TotalRevenue.StringFixed(2))
	fmt.Fprintf(tw, "COGS\t%s\t\n", s.TotalCOGS.StringFixed(2))
	fmt.Fprintf(tw, "Gross profit\t%s\t\n", s.GrossProfit.StringFixed(2))
	fmt.Fprintf(tw, "Operational costs\t%s\t\n", s.OperationalCosts.StringFixed(2))
	fmt.Fprintf(tw, "Net profit\t%s\t\n", s.NetProfit.StringFixed(2))
	fmt.Fprintf(tw, "Margin\t%s%%\t\n", s.ProfitMargin.StringFixed(2))
	return tw.Flush()
}

func writeWorkbook(dir string, s *domain.ProfitLossSummary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperror.Wrap(err, apperror.KindValidation, "cannot create output directory")
	}
	path := filepath.Join(dir, export.ProfitLossFilename(s))

	f, err := os.Create(path)
	if err != nil {
		return "", apperror.Wrap(err, apperror.KindValidation, "cannot write to output directory")
	}
	if err := export.WriteProfitLoss(f, s); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", apperror.Wrap(err, apperror.KindAggregation, "failed to write report workbook")
	}
	return path, f.Close()
}
