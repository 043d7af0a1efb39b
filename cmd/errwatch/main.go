// errwatch - error aggregation daemon and CLI
//
// The daemon collects runtime errors from the host application, keeps a
// badge summarising what is unresolved, pushes each error to live listeners
// and raises debounced notifications. The CLI talks to a running daemon.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/armorclaw/errwatch/pkg/config"
	"github.com/armorclaw/errwatch/pkg/logger"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

type cliConfig struct {
	command    string
	args       []string
	configPath string
	addr       string
	logLevel   string
	verbose    bool
	version    bool
	help       bool
}

func main() {
	cliCfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := dispatch(cliCfg); err != nil {
		fmt.Fprintf(os.Stderr, "errwatch: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(cliCfg cliConfig) error {
	if cliCfg.version {
		printVersion(os.Stdout)
		return nil
	}
	if cliCfg.help {
		printHelp(os.Stdout)
		return nil
	}

	switch cliCfg.command {
	case "", "run":
		return runDaemon(cliCfg)
	case "report":
		return runReportCommand(cliCfg)
	case "list":
		return runListCommand(cliCfg)
	case "clear":
		return runClearCommand(cliCfg)
	case "clear-all":
		return runClearAllCommand(cliCfg)
	case "sweep":
		return runSweepCommand(cliCfg)
	case "discover":
		return runDiscoverCommand(cliCfg)
	case "init":
		return runInitCommand(cliCfg)
	case "version":
		printVersion(os.Stdout)
		return nil
	case "help":
		if len(cliCfg.args) > 0 {
			return printCommandHelp(os.Stdout, cliCfg.args[0])
		}
		printHelp(os.Stdout)
		return nil
	default:
		printHelp(os.Stderr)
		return fmt.Errorf("unknown command %q", cliCfg.command)
	}
}

func parseFlags(args []string, output io.Writer) (cliConfig, error) {
	cfg := cliConfig{}

	fs := flag.NewFlagSet("errwatch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { printHelp(output) }
	fs.StringVar(&cfg.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&cfg.addr, "addr", "", "Daemon address host:port (overrides config)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&cfg.verbose, "v", false, "Verbose logging (sets log level to debug)")
	fs.BoolVar(&cfg.version, "version", false, "Print version and exit")
	fs.BoolVar(&cfg.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	rest := fs.Args()
	if len(rest) > 0 {
		cfg.command = rest[0]
		cfg.args = rest[1:]
	}

	if cfg.verbose {
		cfg.logLevel = "debug"
	}

	return cfg, nil
}

// loadConfig loads the configuration file and applies command line overrides
func loadConfig(cliCfg cliConfig) (*config.Config, error) {
	cfg, err := config.Load(cliCfg.configPath)
	if err != nil {
		return nil, err
	}
	if cliCfg.addr != "" {
		cfg.Server.Addr = cliCfg.addr
	}
	if cliCfg.logLevel != "" {
		cfg.Logging.Level = cliCfg.logLevel
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) error {
	logger.Version = version
	return logger.Initialize(cfg.Logging.Level, cfg.Logging.Format, cfg.LogOutput())
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "errwatch v%s\n", version)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `USAGE:
    errwatch [flags] [command] [command flags]

COMMANDS:
    run         Start the daemon (default)
    report      Send an error to a running daemon
    list        List current errors and the badge
    clear       Clear one error by id
    clear-all   Clear every error
    sweep       Purge errors older than the retention window
    discover    Find daemons on the local network
    init        Write an example configuration file
    version     Show version information
    help        Show this help message

FLAGS:
    -config string      Path to configuration file
    -addr string        Daemon address host:port (overrides config)
    -log-level string   Log level: debug, info, warn, error
    -v                  Verbose logging

EXAMPLES:
    errwatch init
    errwatch run
    errwatch report -level warning -context checkout "payment retry"
    errwatch list
    errwatch clear-all -yes

Run 'errwatch help <command>' for command details.
`)
}

var commandHelp = map[string]string{
	"run": `errwatch run

Starts the daemon: error service, HTTP API, WebSocket stream and, when
enabled, mDNS advertisement. Stops on SIGINT or SIGTERM.
`,
	"report": `errwatch report [-level error|warning|info] [-context label] [-stack text] message...

Sends an error to the daemon. The level defaults to error.
`,
	"list": `errwatch list [-json]

Prints every stored error, oldest first, followed by the badge.
`,
	"clear": `errwatch clear <id>

Removes one error. Unknown ids are ignored.
`,
	"clear-all": `errwatch clear-all [-yes]

Removes every error. Asks for confirmation unless -yes is given.
`,
	"sweep": `errwatch sweep

Purges errors older than the daemon's retention window now.
`,
	"discover": `errwatch discover [-timeout 3s]

Browses the local network for errwatch daemons over mDNS.
`,
	"init": `errwatch init [-output path] [-force]

Writes an example configuration, by default to ~/.errwatch/config.toml.
`,
}

func printCommandHelp(w io.Writer, command string) error {
	text, ok := commandHelp[strings.TrimSpace(command)]
	if !ok {
		return fmt.Errorf("no help for unknown command %q", command)
	}
	fmt.Fprint(w, text)
	return nil
}
