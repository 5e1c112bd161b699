// Package cli parses command-line flags and wires a standalone
// scheduler daemon (store, rate limiter, concurrency manager, runner,
// metrics/introspection servers) for local running and demos.
package cli

import "github.com/spf13/pflag"

// CLIArgs holds every configurable option passed on the command line,
// populated once by ParseFlags.
type CLIArgs struct {
	ConfigPath string // path to a SchedulerConfig JSON file

	StoreDriver string // "memory" or "bolt"
	StorePath   string // bbolt file path, when StoreDriver == "bolt"

	MetricsPort int  // port for /metrics, /health, /ready
	StatusPort  int  // port for introspection /status, /stream
	NoMetrics   bool // disable the metrics HTTP server
	NoStatus    bool // disable the introspection HTTP server

	WebhookURL string // parsed from --webhook; Run does not pass it to the scheduler

	DemoPackage string // package name to register a demo work function under
	DemoJobs    int    // number of synthetic jobs to schedule at startup

	ShowVersion bool
}

// ParseFlags reads command-line flags into CLIArgs using spf13/pflag.
func ParseFlags() CLIArgs {
	var args CLIArgs

	pflag.StringVar(&args.ConfigPath, "config", "", "Path to a scheduler config JSON file")
	pflag.StringVar(&args.StoreDriver, "store", "memory", "Job store driver: memory or bolt")
	pflag.StringVar(&args.StorePath, "store-path", "schedcore.db", "bbolt database file (when --store=bolt)")
	pflag.IntVar(&args.MetricsPort, "metrics-port", 8090, "Port for the metrics/health HTTP server")
	pflag.IntVar(&args.StatusPort, "status-port", 8091, "Port for the introspection HTTP server")
	pflag.BoolVar(&args.NoMetrics, "no-metrics", false, "Disable the metrics HTTP server")
	pflag.BoolVar(&args.NoStatus, "no-status", false, "Disable the introspection HTTP server")
	pflag.StringVar(&args.WebhookURL, "webhook", "", "Webhook URL for job lifecycle events (accepted but not used: no events are posted)")
	pflag.StringVar(&args.DemoPackage, "demo-package", "com.example.demo", "Package name the demo work function registers under")
	pflag.IntVar(&args.DemoJobs, "demo-jobs", 0, "Number of synthetic demo jobs to schedule at startup")
	pflag.BoolVar(&args.ShowVersion, "version", false, "Print version information and exit")

	pflag.Parse()
	return args
}
