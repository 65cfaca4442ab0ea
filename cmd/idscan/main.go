// Package main is the idscan CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/cli"
	"github.com/hyperjump/idscan/internal/config"
	"github.com/hyperjump/idscan/internal/inbox"
	"github.com/hyperjump/idscan/internal/models"
	"github.com/hyperjump/idscan/internal/queue"
	"github.com/hyperjump/idscan/internal/server"
	"github.com/hyperjump/idscan/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/idscan/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path after reading an optional .env file. When
// path is the default, config.yaml in the current directory wins if present;
// when neither exists, defaults plus environment are used.
// Returns the config and the path that was actually loaded ("" for none).
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg, err := config.Load("")
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "worker":
		runWorker()
	case "submit":
		runSubmit()
	case "status":
		runStatus()
	case "export":
		runExport()
	case "version", "--version", "-v":
		fmt.Printf("idscan version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the named logger shared by the long-running commands.
func setup(name string, args []string) (*config.Config, *zap.Logger) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode, name)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("queue", cfg.Queue.Driver),
		zap.String("llm", cfg.LLM.Provider),
	)
	return cfg, logger
}

func runServer() {
	cfg, logger := setup("server", os.Args[2:])
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// With the memory broker the workers must live in this process.
	inProcess := cfg.Queue.Driver == "memory"
	components, err := initializeComponents(ctx, cfg, logger, inProcess)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	workerDone := make(chan struct{})
	if inProcess {
		w := queue.NewWorker(components.Broker, components.Processor,
			queue.WithConcurrency(cfg.Queue.Workers),
			queue.WithWorkerLogger(logger.Named("worker")))
		go func() {
			defer close(workerDone)
			if err := w.Start(ctx); err != nil {
				logger.Error("worker stopped with error", zap.Error(err))
			}
		}()
	} else {
		close(workerDone)
	}

	if len(cfg.Inbox.Directories) > 0 {
		in := inbox.New(cfg.Inbox.Directories, cfg.Inbox.DocType, components.Broker,
			inbox.WithLogger(logger.Named("inbox")),
			inbox.WithDebounce(cfg.Inbox.Debounce),
			inbox.WithExtensions(cfg.Inbox.Extensions))
		if err := in.Start(ctx); err != nil {
			logger.Fatal("Failed to start inbox", zap.Error(err))
		}
		defer in.Stop()
	}

	srv := server.NewServer(components.Broker, components.Store, &cfg.Server, logger,
		server.WithSearch(components.Index),
		server.WithDiskPaths(diskPaths(cfg)...))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	<-workerDone
}

func runWorker() {
	cfg, logger := setup("worker", os.Args[2:])
	defer logger.Sync()

	if cfg.Queue.Driver != "redis" {
		logger.Fatal("the worker command needs queue.driver redis (or IDSCAN_REDIS_ADDR); the memory queue runs workers inside the server")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	w := queue.NewWorker(components.Broker, components.Processor,
		queue.WithConcurrency(cfg.Queue.Workers),
		queue.WithWorkerLogger(logger))
	if err := w.Start(ctx); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
	}
}

func runSubmit() {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	docType := fs.String("doc-type", "", "document type label (required)")
	wait := fs.Bool("wait", false, "wait for the run to finish and print the result")
	interval := fs.Duration("interval", time.Second, "status poll interval with --wait")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if *docType == "" || fs.NArg() == 0 {
		fmt.Println("Usage: idscan submit --doc-type <type> [--wait] <file>...")
		os.Exit(1)
	}
	if len(*docType) > models.MaxDocTypeLength {
		fmt.Printf("doc-type must be at most %d characters\n", models.MaxDocTypeLength)
		os.Exit(1)
	}
	format := cli.OutputFormat(*output)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := cli.NewClient(*serverURL)
	resp, err := client.Submit(ctx, *docType, fs.Args())
	if err != nil {
		fmt.Printf("Submit failed: %v\n", err)
		os.Exit(1)
	}
	if !*wait {
		if format == cli.OutputJSON {
			_ = cli.WriteStatus(os.Stdout, resp.TaskID, &cli.StatusResponse{State: models.RunPending, Status: resp.Message}, format)
			return
		}
		fmt.Printf("Submitted: %s\n", resp.TaskID)
		return
	}

	st, err := client.Wait(ctx, resp.TaskID, *interval, func(s *cli.StatusResponse) {
		if format != cli.OutputJSON {
			fmt.Printf("[%s] %s\n", s.State, s.Status)
		}
	})
	if err != nil {
		fmt.Printf("Wait failed: %v\n", err)
		os.Exit(1)
	}
	if st.State == models.RunFailure || st.Result == nil {
		_ = cli.WriteStatus(os.Stdout, resp.TaskID, st, format)
		os.Exit(1)
	}
	doc, err := client.Document(ctx, *st.Result)
	if err != nil {
		fmt.Printf("Fetch document failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteDocument(os.Stdout, doc, format)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: idscan status [flags] <task-id>")
		os.Exit(1)
	}
	taskID := fs.Arg(0)
	st, err := cli.NewClient(*serverURL).Status(context.Background(), taskID)
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteStatus(os.Stdout, taskID, st, cli.OutputFormat(*output))
	if st.State == models.RunFailure {
		os.Exit(1)
	}
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	page := fs.Int("page", 1, "history page to export")
	perPage := fs.Int("per-page", 100, "documents per page")
	out := fs.String("out", "documents.xlsx", "output file")
	_ = fs.Parse(os.Args[2:])

	f, err := os.Create(*out)
	if err != nil {
		fmt.Printf("Failed to create %s: %v\n", *out, err)
		os.Exit(1)
	}
	if err := cli.NewClient(*serverURL).Export(context.Background(), *page, *perPage, f); err != nil {
		f.Close()
		_ = os.Remove(*out)
		fmt.Printf("Export failed: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Printf("Failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Exported page %d to %s\n", *page, *out)
}

// argsReorder moves flags (with their values) that follow positional
// arguments to the front so flag.Parse sees them; "idscan submit a.jpg
// --doc-type Passport" would otherwise leave --doc-type unparsed.
// Boolean flags must use the -flag or -flag=value form after positionals.
func argsReorder(args []string) []string {
	flags := make([]string, 0, len(args))
	var positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) > 1 && a[0] == '-' {
			flags = append(flags, a)
			if !isBoolFlag(a) && !hasInlineValue(a) && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positional = append(positional, a)
	}
	return append(flags, positional...)
}

var boolFlags = map[string]bool{"wait": true, "debug": true}

func isBoolFlag(a string) bool {
	name := a
	for len(name) > 0 && name[0] == '-' {
		name = name[1:]
	}
	return boolFlags[name]
}

func hasInlineValue(a string) bool {
	for i := 0; i < len(a); i++ {
		if a[i] == '=' {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Println(`idscan - Identity document OCR and structuring service

Usage:
  idscan server [flags]                     Start the HTTP API (and workers with the memory queue)
  idscan worker [flags]                     Consume runs from the Redis queue
  idscan submit [flags] <file>...           Submit document files for processing
  idscan status [flags] <task-id>           Show the state of a run
  idscan export [flags]                     Download a history page as XLSX
  idscan version                            Show version
  idscan help                               Show this help

Server/Worker Flags:
  --config string    Config file path (default: ` + defaultConfigPath + `)
  --debug            Enable debug logging

Submit Flags:
  --server string    Server URL (default: ` + defaultServerURL + `)
  --doc-type string  Document type label, at most ` + strconv.Itoa(models.MaxDocTypeLength) + ` characters (required)
  --wait             Wait for the run and print the extracted document
  --interval dur     Poll interval with --wait (default: 1s)
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: ` + defaultServerURL + `)
  --output string    Output format: text or json (default: text)

Export Flags:
  --server string    Server URL (default: ` + defaultServerURL + `)
  --page int         History page (default: 1)
  --per-page int     Documents per page (default: 100)
  --out string       Output file (default: documents.xlsx)

Environment:
  IDSCAN_DATABASE_URL / DATABASE_URL   PostgreSQL URL (switches storage to postgres)
  IDSCAN_REDIS_ADDR                    Redis address (switches the queue to redis)
  OLLAMA_API_URL, IDSCAN_LLM_MODEL     Ollama endpoint and model
  IDSCAN_LLM_PROVIDER                  ollama or vertex (GOOGLE_CLOUD_PROJECT for vertex)

Examples:
  idscan server
  idscan submit --doc-type Passport --wait scan.pdf
  idscan submit --doc-type "Emirates ID" front.jpg back.jpg
  idscan status 0b5c3f7e-2d7e-4c1a-9a57-3f1e0e9d2a11`)
}
