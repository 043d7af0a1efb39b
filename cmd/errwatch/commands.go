package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/armorclaw/errwatch/pkg/config"
	"github.com/armorclaw/errwatch/pkg/discovery"
	"github.com/armorclaw/errwatch/pkg/errors"
	api "github.com/armorclaw/errwatch/pkg/http"
)

const requestTimeout = 10 * time.Second

// newClient resolves the daemon address from -addr or the configuration
func newClient(cliCfg cliConfig) (*api.Client, error) {
	if cliCfg.addr != "" {
		return api.NewClient(cliCfg.addr), nil
	}
	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.Server.Addr), nil
}

func commandFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("errwatch "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { printCommandHelp(os.Stderr, name) }
	return fs
}

func runReportCommand(cliCfg cliConfig) error {
	fs := commandFlags("report")
	level := fs.String("level", string(errors.LevelError), "Level: error, warning, info")
	label := fs.String("context", "cli", "Context label for the error")
	stack := fs.String("stack", "", "Optional stack trace")
	if err := fs.Parse(cliCfg.args); err != nil {
		return err
	}

	message := strings.Join(fs.Args(), " ")
	if message == "" {
		return fmt.Errorf("report needs a message")
	}

	client, err := newClient(cliCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	rec, err := client.Report(ctx, api.ReportRequest{
		Message: message,
		Stack:   *stack,
		Level:   *level,
		Context: *label,
	})
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout)
	fmt.Fprintf(p.w, "%s %s\n", p.level(rec.Level), rec.ID)
	return nil
}

func runListCommand(cliCfg cliConfig) error {
	fs := commandFlags("list")
	asJSON := fs.Bool("json", false, "Print records as JSON")
	if err := fs.Parse(cliCfg.args); err != nil {
		return err
	}

	client, err := newClient(cliCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	records, err := client.List(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	badge, err := client.Badge(ctx)
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout)
	p.records(records, time.Now())
	p.badge(badge)
	return nil
}

func runClearCommand(cliCfg cliConfig) error {
	if len(cliCfg.args) != 1 {
		return fmt.Errorf("clear needs exactly one error id")
	}

	client, err := newClient(cliCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := client.Clear(ctx, cliCfg.args[0]); err != nil {
		return err
	}
	fmt.Printf("cleared %s\n", cliCfg.args[0])
	return nil
}

func runClearAllCommand(cliCfg cliConfig) error {
	fs := commandFlags("clear-all")
	yes := fs.Bool("yes", false, "Skip confirmation")
	if err := fs.Parse(cliCfg.args); err != nil {
		return err
	}

	if !*yes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to clear all errors without -yes on non-interactive input")
		}
		confirmed := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title("Clear every error?").
				Description("The badge will be reset.").
				Affirmative("Clear").
				Negative("Cancel").
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("cancelled")
			return nil
		}
	}

	client, err := newClient(cliCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := client.ClearAll(ctx); err != nil {
		return err
	}
	fmt.Println("cleared all errors")
	return nil
}

func runSweepCommand(cliCfg cliConfig) error {
	client, err := newClient(cliCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	purged, err := client.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d\n", purged)
	return nil
}

func runDiscoverCommand(cliCfg cliConfig) error {
	fs := commandFlags("discover")
	timeout := fs.Duration("timeout", discovery.DiscoveryTimeout, "How long to wait for answers")
	if err := fs.Parse(cliCfg.args); err != nil {
		return err
	}

	client := discovery.NewClient()
	client.SetTimeout(*timeout)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+time.Second)
	defer cancel()

	instances, err := client.Discover(ctx)
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout)
	p.instances(instances)
	return nil
}

func runInitCommand(cliCfg cliConfig) error {
	fs := commandFlags("init")
	output := fs.String("output", "", "Output path (default ~/.errwatch/config.toml)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(cliCfg.args); err != nil {
		return err
	}

	path := *output
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to determine home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".errwatch", "config.toml")
	}

	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s already exists, use -force to overwrite", path)
	}

	if err := config.GenerateExampleConfig(path); err != nil {
		return fmt.Errorf("failed to generate example config: %w", err)
	}
	fmt.Printf("Example configuration written to: %s\n", path)
	fmt.Println("Start the daemon with: errwatch run")
	return nil
}
