// Package main is the Omoide CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/omoide/internal/cli"
	"github.com/hyperjump/omoide/internal/config"
	"github.com/hyperjump/omoide/internal/embedding"
	"github.com/hyperjump/omoide/internal/extract"
	"github.com/hyperjump/omoide/internal/memory"
	"github.com/hyperjump/omoide/internal/metadata"
	"github.com/hyperjump/omoide/internal/models"
	"github.com/hyperjump/omoide/internal/server"
	"github.com/hyperjump/omoide/internal/vector"
	"github.com/hyperjump/omoide/internal/watcher"
	"github.com/hyperjump/omoide/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/omoide/config.yaml"
	defaultServerURL  = "http://localhost:8086"
)

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "omoide server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
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
	case "store":
		runStore()
	case "search":
		runSearch()
	case "list":
		runList()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("omoide version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	mockEmbedder := fs.Bool("mock-embedder", false, "use the deterministic mock embedder instead of the ONNX model")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	service, err := initializeService(cfg, logger, *mockEmbedder)
	if err != nil {
		logger.Fatal("Failed to initialize memory service", zap.Error(err))
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warn("shutdown save failed", zap.Error(err))
		}
	}()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var inboxWatcher *watcher.InboxWatcher
	if len(cfg.Watch.Inboxes) > 0 {
		inboxes := make([]watcher.Inbox, 0, len(cfg.Watch.Inboxes))
		for _, in := range cfg.Watch.Inboxes {
			inboxes = append(inboxes, watcher.Inbox{Directory: in.Directory, UserID: in.UserID})
		}
		inboxWatcher = watcher.NewInboxWatcher(inboxes, cfg.Watch.Extensions, service,
			watcher.WithLogger(logger))
		if err := inboxWatcher.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start inbox watcher", zap.Error(err))
		}
		inboxWatcher.SyncExistingFiles(watchCtx)
	}

	srv := server.NewServer(service, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if inboxWatcher != nil {
		inboxWatcher.Stop()
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// initializeService builds the memory service from config: metadata store and
// vector index loaded from disk, embedder deferred until the first request so
// a missing model does not block startup.
func initializeService(cfg *config.Config, logger *zap.Logger, mock bool) (*memory.Service, error) {
	idx, err := vector.NewFlatIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if err := idx.Load(cfg.Storage.IndexPath); err != nil {
		return nil, fmt.Errorf("failed to load vector index: %w", err)
	}
	logger.Info("vector index loaded",
		zap.String("path", cfg.Storage.IndexPath),
		zap.Int("vectors", idx.Size()), zap.Int("live", idx.Live()))

	meta := metadata.NewStore(cfg.Storage.MetadataPath, logger)
	if err := meta.Load(); err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}

	var embedder embedding.Embedder
	if mock {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embCfg := cfg.Embedding
		embedder = embedding.NewLazy(embCfg.Dimensions, func() (embedding.Embedder, error) {
			return embedding.NewONNXEmbedder(embCfg.ModelPath, embCfg.Dimensions, embCfg.MaxTokens, embCfg.CacheSize)
		})
	}

	return memory.NewService(
		&cfg.Memory,
		cfg.Storage.DocumentsDir,
		cfg.Storage.IndexPath,
		extract.NewExtractor(),
		embedder,
		idx,
		meta,
		memory.WithLogger(logger),
	)
}

type storeResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId"`
}

func runStore() {
	fs := flag.NewFlagSet("store", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	user := fs.String("user", "", "user id that owns the document")
	_ = fs.Parse(os.Args[2:])

	if *user == "" || fs.NArg() < 1 {
		fmt.Println("Usage: omoide store --user <user-id> <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err == nil {
		_, err = io.Copy(part, f)
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build upload: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/users/%s/documents", *serverURL, *user),
		mw.FormDataContentType(), &buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Store failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out storeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document stored: %s\n", out.DocumentID)
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	user := fs.String("user", "", "user id to search as")
	limit := fs.Int("limit", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if *user == "" || queryStr == "" {
		fmt.Println("Usage: omoide search --user <user-id> [flags] <query>")
		os.Exit(1)
	}

	format, ok := parseOutputFormat(*outputFormat)
	if !ok {
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]interface{}{"query": queryStr, "limit": *limit})
	resp, err := http.Post(
		fmt.Sprintf("%s/api/v1/users/%s/search", *serverURL, *user),
		"application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Search failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var results []*models.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	user := fs.String("user", "", "user id to list documents for")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *user == "" {
		fmt.Println("Usage: omoide list --user <user-id>")
		os.Exit(1)
	}
	format, ok := parseOutputFormat(*outputFormat)
	if !ok {
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/users/%s/documents", *serverURL, *user))
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var docs []*models.DocumentSummary
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteDocumentList(os.Stdout, docs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	user := fs.String("user", "", "user id that owns the document")
	_ = fs.Parse(os.Args[2:])

	if *user == "" || fs.NArg() < 1 {
		fmt.Println("Usage: omoide delete --user <user-id> <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/v1/users/%s/documents/%s", *serverURL, *user, docID), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		fmt.Printf("Document deleted: %s\n", docID)
	case http.StatusNotFound:
		fmt.Printf("Document not found: %s\n", docID)
		os.Exit(1)
	default:
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		for _, key := range []string{"documents", "chunks", "slots", "index_size", "index_live", "disk_usage_bytes"} {
			if v, ok := status[key]; ok {
				fmt.Printf("%-18s %v\n", key+":", v)
			}
		}
		if cfgSection, ok := status["config"].(map[string]interface{}); ok {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"embedding_dimensions", "chunk_size", "chunk_overlap", "documents_dir", "index_path", "metadata_path"} {
				if v, ok := cfgSection[key]; ok {
					fmt.Printf("%-21s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func parseOutputFormat(s string) (cli.OutputFormat, bool) {
	switch s {
	case "text":
		return cli.OutputText, true
	case "json":
		return cli.OutputJSON, true
	default:
		return "", false
	}
}

func printUsage() {
	fmt.Println(`omoide - per-user document memory with semantic search

Usage:
  omoide server [flags]                         Start the HTTP server
  omoide store --user <id> <file>               Upload a document for a user
  omoide search --user <id> [flags] <query>     Search a user's documents
  omoide list --user <id>                       List a user's documents
  omoide delete --user <id> <document-id>       Delete a user's document
  omoide status [flags]                         Show service status
  omoide version                                Show version
  omoide help                                   Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/omoide/config.yaml)
  --debug            Enable debug logging
  --mock-embedder    Use the deterministic mock embedder (no ONNX model needed)

Client Flags (store/search/list/delete/status):
  --server string    Server URL (default: http://localhost:8086)
  --user string      User id the operation acts as
  --limit int        Search: number of results (0 = server default)
  --output string    Output format: text or json (default: text)

Examples:
  omoide server
  omoide store --user alice report.pdf
  omoide search --user alice quarterly revenue
  omoide search --user alice --output json "quarterly revenue"
  omoide list --user alice
  omoide delete --user alice 2f1f9c3a-...
  omoide status --output json`)
}
