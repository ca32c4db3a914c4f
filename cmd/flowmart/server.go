package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/flowmart/internal/aisearch"
	"github.com/kalambet/flowmart/internal/api"
	"github.com/kalambet/flowmart/internal/cache"
	"github.com/kalambet/flowmart/internal/catalog"
	"github.com/kalambet/flowmart/internal/checkout"
	"github.com/kalambet/flowmart/internal/config"
	"github.com/kalambet/flowmart/internal/engine"
	"github.com/kalambet/flowmart/internal/events"
	"github.com/kalambet/flowmart/internal/query"
	"github.com/kalambet/flowmart/internal/search"
	"github.com/kalambet/flowmart/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the flowmart HTTP API (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running flowmart server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show flowmart server and search backend status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the catalog as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "flowmart.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// app is the wired core shared by the HTTP and MCP front ends.
type app struct {
	store    *catalog.Store
	query    *query.Engine
	search   *search.Orchestrator
	checkout *checkout.Service
	provider string
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closing resource", "error", err)
		}
	}
}

func loadCatalog(ctx context.Context, cfg config.Config) (*catalog.Store, error) {
	var src catalog.Source
	switch cfg.Catalog.Source {
	case "seed", "":
		src = catalog.SeedSource{}
	case "file":
		if cfg.Catalog.Path == "" {
			return nil, errors.New("catalog.source is file but catalog.path is empty")
		}
		src = catalog.FileSource{Path: cfg.Catalog.Path}
	case "sqlite":
		db, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				slog.Warn("closing storage", "error", err)
			}
		}()
		src = db
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}

	store, err := catalog.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return store, nil
}

// detectEngine returns the inference backend, or nil when AI search is
// unavailable. It never fails startup.
func detectEngine(ctx context.Context, cfg config.Config) engine.Engine {
	eng, err := engine.Detect(ctx, engine.DetectConfig{
		Provider:      cfg.AI.Provider,
		GeminiAPIKey:  cfg.AI.GeminiAPIKey,
		GeminiBaseURL: cfg.AI.GeminiBaseURL,
		OllamaBaseURL: cfg.AI.OllamaBaseURL,
	})
	if err != nil {
		if errors.Is(err, engine.ErrNotConfigured) {
			slog.Warn("AI search unavailable", "reason", err, "hint", config.APIKeyHint())
		} else {
			slog.Warn("AI search unavailable", "error", err)
		}
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := engine.EnsureReady(checkCtx, eng, cfg.AI.Model); err != nil {
		slog.Warn("AI search unavailable", "provider", eng.Name(), "error", err)
		return nil
	}
	return eng
}

func newPublisher(cfg config.Config) events.Publisher {
	if brokers := cfg.Events.Brokers(); len(brokers) > 0 {
		slog.Info("publishing purchase events to kafka", "brokers", brokers, "topic", cfg.Events.KafkaTopic)
		return events.NewKafkaPublisher(brokers, cfg.Events.KafkaTopic)
	}
	return events.NewLogPublisher(slog.Default())
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, err := loadCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("catalog loaded", "source", cfg.Catalog.Source, "workflows", store.Len())

	a := &app{store: store}
	a.query = query.NewEngine(store, cfg.Catalog.Latency)

	opts := []aisearch.Option{aisearch.WithTimeout(cfg.AI.Timeout)}
	if cfg.Cache.RedisAddr != "" {
		mc := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.TTL)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := mc.Ping(pingCtx); err != nil {
			slog.Warn("match cache unreachable, continuing without it", "addr", cfg.Cache.RedisAddr, "error", err)
			mc.Close()
		} else {
			opts = append(opts, aisearch.WithCache(mc))
			a.closers = append(a.closers, mc.Close)
		}
		cancel()
	}

	var matcher search.Matcher
	if eng := detectEngine(ctx, cfg); eng != nil {
		matcher = aisearch.NewAdapter(eng, cfg.AI.Model, store, opts...)
		a.provider = eng.Name()
		slog.Info("AI search enabled", "provider", a.provider, "model", cfg.AI.Model)
	}
	a.search = search.New(a.query, matcher)

	pub := newPublisher(cfg)
	a.closers = append(a.closers, pub.Close)
	a.checkout = checkout.NewService(a.query, pub, cfg.Checkout.Delay)

	return a, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "flowmart version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("flowmart is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("flowmart is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := search.NewRegistry(a.search, 0)
	go pruneSessions(ctx, sessions, time.Minute)

	handler := api.NewHandler(api.Deps{
		Query:    a.query,
		Search:   a.search,
		Sessions: sessions,
		Checkout: a.checkout,
		Provider: a.provider,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("flowmart listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func pruneSessions(ctx context.Context, r *search.Registry, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.Prune(now)
		}
	}
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the MCP protocol; logs stay on stderr.
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{Query: a.query, Search: a.search}, version)
	stdioSrv := server.NewStdioServer(mcpSrv)
	slog.Info("MCP server started (stdio transport)")
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("flowmart is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop flowmart (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to flowmart (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		if st, err := fetchSearchStatus(client, serverURL); err == nil {
			printStatus("AI search", "%s", aiLabel(st))
		}
	} else {
		printStatus("AI provider", "%s", cfg.AI.Provider)
	}
	printStatus("AI model", "%s", cfg.AI.Model)
	if cfg.AI.GeminiAPIKey == "" && cfg.AI.Provider == engine.ProviderGemini {
		printWarning("Gemini API key not set: %s", config.APIKeyHint())
	}
	printStatus("Catalog source", "%s", cfg.Catalog.Source)
	if cfg.Cache.RedisAddr != "" {
		printStatus("Match cache", "redis at %s", cfg.Cache.RedisAddr)
	}
	if brokers := cfg.Events.Brokers(); len(brokers) > 0 {
		printStatus("Purchase events", "kafka %s (%s)", strings.Join(brokers, ","), cfg.Events.KafkaTopic)
	} else {
		printStatus("Purchase events", "log")
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func fetchSearchStatus(client *http.Client, serverURL string) (api.SearchStatus, error) {
	var st api.SearchStatus
	resp, err := client.Get(serverURL + "/v1/search/status")
	if err != nil {
		return st, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&st)
	return st, err
}

func aiLabel(st api.SearchStatus) string {
	if !st.AIAvailable {
		return "unavailable"
	}
	if st.Provider == "" {
		return "available"
	}
	return "available (" + st.Provider + ")"
}
