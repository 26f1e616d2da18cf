package setup

import (
	"context"
	"fmt"
	"io"

	"github.com/cll-genie-server/internal/config"
)

// CLI provides command-line interface for setup operations.
type CLI struct {
	cfg *config.LiteConfig
	out io.Writer
}

// NewCLI creates a new setup CLI instance.
func NewCLI(cfg *config.LiteConfig, out io.Writer) *CLI {
	return &CLI{cfg: cfg, out: out}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "status":
		return c.showStatus(ctx)
	case "validate":
		return c.validate()
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

// showHelp displays usage information.
func (c *CLI) showHelp() error {
	help := `
CLL Genie Server Setup

Usage:
  server-lite setup <command>

Commands:
  status    Show the data directory, databases and report files
  validate  Validate the environment configuration

Configuration is read from CLL_GENIE_* environment variables, e.g.
  CLL_GENIE_DATA_DIR, CLL_GENIE_MODE (http|mcp), CLL_GENIE_HTTP_PORT,
  CLL_GENIE_VQUEST_URL, CLL_GENIE_SUPER_USER_GROUPS
`
	fmt.Fprintln(c.out, help)
	return nil
}

// showStatus displays the current setup status.
func (c *CLI) showStatus(ctx context.Context) error {
	status, err := GetStatus(ctx, c.cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "CLL Genie Server Status")
	fmt.Fprintln(c.out, "=======================")
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "Mode: %s\n\n", status.Mode)

	fmt.Fprintln(c.out, "Data Directory:")
	fmt.Fprintf(c.out, "  Path: %s\n", status.DataDir)
	if !status.DataDirExists {
		fmt.Fprintln(c.out, "  Status: - Will be created on first run")
	} else {
		fmt.Fprintln(c.out, "  Status: ✓ Exists")
		fmt.Fprintf(c.out, "  Database: %s\n", presence(status.DatabasePresent))
		if status.AuditPresent {
			fmt.Fprintf(c.out, "  Audit trail: ✓ %d entries\n", status.AuditEntries)
		} else {
			fmt.Fprintln(c.out, "  Audit trail: - Not created yet")
		}
		fmt.Fprintf(c.out, "  Reports: %d in %s\n", status.ReportFiles, status.ReportDir)
	}
	fmt.Fprintln(c.out)

	if len(status.Issues) > 0 {
		fmt.Fprintln(c.out, "Issues:")
		for _, issue := range status.Issues {
			fmt.Fprintf(c.out, "  ⚠ %s\n", issue)
		}
		fmt.Fprintln(c.out)
	}

	return nil
}

func presence(ok bool) string {
	if ok {
		return "✓ Present"
	}
	return "- Not created yet"
}

// validate checks the current configuration.
func (c *CLI) validate() error {
	fmt.Fprintln(c.out, "Validating configuration...")
	fmt.Fprintln(c.out)

	valid, issues := Validate(c.cfg)
	if valid {
		fmt.Fprintln(c.out, "✓ Configuration is valid!")
		return nil
	}

	fmt.Fprintln(c.out, "✗ Configuration has issues:")
	for _, issue := range issues {
		fmt.Fprintf(c.out, "  - %s\n", issue)
	}
	return fmt.Errorf("configuration has %d issue(s)", len(issues))
}
