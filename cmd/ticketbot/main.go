// ABOUTME: Entry point for the ticketbot webhook server
// ABOUTME: Bridges the messaging webhook, the AI assistant and the ticket backend

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/solarops/ticketbot/internal/assistant"
	"github.com/solarops/ticketbot/internal/breaker"
	"github.com/solarops/ticketbot/internal/config"
	"github.com/solarops/ticketbot/internal/dashboard"
	"github.com/solarops/ticketbot/internal/dedupe"
	"github.com/solarops/ticketbot/internal/odoo"
	"github.com/solarops/ticketbot/internal/queue"
	"github.com/solarops/ticketbot/internal/router"
	"github.com/solarops/ticketbot/internal/store"
	"github.com/solarops/ticketbot/internal/webhook"
	"github.com/solarops/ticketbot/internal/whatsapp"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _   _      _        _   _           _
| |_(_) ___| | _____| |_| |__   ___ | |_
| __| |/ __| |/ / _ \ __| '_ \ / _ \| __|
| |_| | (__|   <  __/ |_| |_) | (_) | |_
 \__|_|\___|_|\_\___|\__|_.__/ \___/ \__|
`

// getConfigPath returns the path to the config file.
// Priority: TICKETBOT_CONFIG env var > XDG_CONFIG_HOME/ticketbot/ticketbot.yaml > ~/.config/ticketbot/ticketbot.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TICKETBOT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "ticketbot.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "ticketbot", "ticketbot.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: ticketbot <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve          Start the webhook server")
		fmt.Println("  init           Create a new config file interactively")
		fmt.Println("  health         Check server health")
		fmt.Println("  hash-password  Generate a bcrypt hash for the dashboard password")
		os.Exit(1)
	}

	// Secrets referenced as ${VAR} in the config may live in a .env file
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "hash-password":
		err = runHashPassword()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Sessions:  %s\n", cfg.Database.Driver)
	if cfg.Redis.Addr != "" {
		green.Print("    ▶ ")
		fmt.Printf("Queues:    redis (%s)\n", cfg.Redis.Addr)
	}
	if cfg.Dashboard.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Dashboard: enabled\n")
	}
	fmt.Println()

	logger.Info("starting ticketbot",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Session store
	var sessions store.Store
	switch cfg.Database.Driver {
	case "sqlite":
		sessions, err = store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening session store: %w", err)
		}
	default:
		logger.Warn("using in-memory session store, sessions are lost on restart")
		sessions = store.NewMemoryStore()
	}
	defer sessions.Close()

	// Queue tracker
	var tracker queue.Tracker
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		tracker, err = queue.NewRedisTracker(ctx, client)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
	} else {
		tracker = queue.NewMemoryTracker()
	}

	// Backends
	messenger := whatsapp.NewClient(cfg.WhatsApp.AccessToken, cfg.WhatsApp.Version,
		cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.BaseURL)

	ai, err := assistant.NewFromAPIKey(cfg.Assistant.APIKey, assistant.Options{
		Model:        cfg.Assistant.Model,
		SystemPrompt: cfg.Assistant.SystemPrompt,
		HistoryLimit: cfg.Assistant.HistoryLimit,
	})
	if err != nil {
		return fmt.Errorf("creating assistant client: %w", err)
	}

	backend := odoo.NewClient(cfg.Odoo.TicketsURL, cfg.Odoo.LeadsURL, cfg.Odoo.TeamID)

	aiBreaker := breaker.New("assistant", 5, time.Minute)
	backendBreaker := breaker.New("odoo", 5, time.Minute)

	facade := dashboard.NewFacade(sessions, tracker,
		[]*breaker.Breaker{aiBreaker, backendBreaker}, cfg.Session.TTL)

	rt, err := router.New(router.Options{
		Store:          sessions,
		Messenger:      messenger,
		Assistant:      ai,
		Backend:        backend,
		Tracker:        tracker,
		Recorder:       facade,
		TTL:            cfg.Session.TTL,
		BackendTimeout: cfg.Session.BackendTimeout,
		HistoryLimit:   cfg.Session.HistoryLimit,
		Intents:        cfg.Intents,
		Forms:          cfg.Forms,
		Replies:        cfg.Replies,
		AIBreaker:      aiBreaker,
		BackendBreaker: backendBreaker,
	})
	if err != nil {
		return fmt.Errorf("creating router: %w", err)
	}

	seen := dedupe.New(10*time.Minute, 4096)
	defer seen.Close()

	hook := webhook.NewHandler(rt, tracker, seen, cfg.WhatsApp.AppSecret, cfg.WhatsApp.VerifyToken)

	mux := chi.NewRouter()
	mux.Get("/webhook", hook.Verify)
	mux.Post("/webhook", hook.Receive)
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.Dashboard.Enabled {
		verifier := dashboard.NewJWTVerifier([]byte(cfg.Dashboard.JWTSecret))
		dash := dashboard.NewHandler(facade, verifier,
			cfg.Dashboard.Username, cfg.Dashboard.PasswordHash, cfg.Dashboard.TokenTTL)
		mux.Mount("/dashboard/api", dash.Routes())
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runHashPassword reads a password from stdin and prints its bcrypt hash
// for use as dashboard.password_hash.
func runHashPassword() error {
	fmt.Print("Password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("ticketbot configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Session Storage ---")
	dbDriver := prompt(reader, "Session store (sqlite/memory)", "sqlite")
	dbPath := ""
	if dbDriver == "sqlite" {
		dbPath = prompt(reader, "SQLite database path", "ticketbot.db")
	}

	fmt.Println("\n--- Queue Tracking ---")
	redisAddr := prompt(reader, "Redis address (leave empty for in-memory)", "")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# ticketbot configuration\n")
	cfg.WriteString("# Generated by ticketbot init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  driver: \"%s\"\n", dbDriver))
	if dbPath != "" {
		cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	}
	cfg.WriteString("\n")

	if redisAddr != "" {
		cfg.WriteString("redis:\n")
		cfg.WriteString(fmt.Sprintf("  addr: \"%s\"\n", redisAddr))
		cfg.WriteString("\n")
	}

	cfg.WriteString("whatsapp:\n")
	cfg.WriteString("  access_token: \"${WHATSAPP_ACCESS_TOKEN}\"\n")
	cfg.WriteString("  app_secret: \"${WHATSAPP_APP_SECRET}\"\n")
	cfg.WriteString("  phone_number_id: \"${WHATSAPP_PHONE_NUMBER_ID}\"\n")
	cfg.WriteString("  verify_token: \"${WHATSAPP_VERIFY_TOKEN}\"\n")
	cfg.WriteString("  version: \"v18.0\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("assistant:\n")
	cfg.WriteString("  api_key: \"${OPENAI_API_KEY}\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("odoo:\n")
	cfg.WriteString("  tickets_url: \"${ODOO_TICKETS_WEBHOOK_URL}\"\n")
	cfg.WriteString("  leads_url: \"${ODOO_LEADS_WEBHOOK_URL}\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("session:\n")
	cfg.WriteString("  ttl: \"10m\"\n")
	cfg.WriteString("  backend_timeout: \"15s\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nSet the referenced environment variables (or place them in a .env")
	fmt.Println("file next to the binary), then start the server:")
	fmt.Printf("  ticketbot serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
