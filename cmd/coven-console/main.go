// ABOUTME: Entry point for the coven-console admin client.
// ABOUTME: Wires config, backend API, push channel, engine, and the interactive loop.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-console/internal/api"
	"github.com/2389/coven-console/internal/config"
	"github.com/2389/coven-console/internal/engine"
	"github.com/2389/coven-console/internal/metrics"
	"github.com/2389/coven-console/internal/observer"
	"github.com/2389/coven-console/internal/push"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ _____   _____ _ __         ___ ___  _ __  ___  ___ | | ___
 / __/ _ \ \ / / _ \ '_ \ _____ / __/ _ \| '_ \/ __|/ _ \| |/ _ \
| (_| (_) \ V /  __/ | | |_____| (_| (_) | | | \__ \ (_) | |  __/
 \___\___/ \_/ \___|_| |_|      \___\___/|_| |_|___/\___/|_|\___|
`

// getConfigPath returns the path to the console config file.
// Priority: COVEN_CONSOLE_CONFIG env var > XDG_CONFIG_HOME/coven/console.yaml > ~/.config/coven/console.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_CONSOLE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "console.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven", "console.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: coven-console <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  run      Connect to the backend and start the console")
		fmt.Println("  init     Write a starter config file")
		fmt.Println("  health   Check backend connectivity")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "run":
		err = runConsole(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runConsole(ctx context.Context) error {
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

	identity, err := config.LoadIdentity(cfg.Operator.IdentityPath)
	if err != nil {
		return fmt.Errorf("loading operator identity: %w", err)
	}

	token, err := cfg.ResolveToken()
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Backend:  %s\n", cfg.Backend.BaseURL)
	green.Print("    ▶ ")
	fmt.Printf("Push:     %s\n", cfg.Push.URL)
	green.Print("    ▶ ")
	fmt.Printf("Operator: %s\n", identity.AdminID)
	if cfg.Observer.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Observer: http://%s\n", cfg.Observer.ListenAddr)
	}
	fmt.Println()

	logger.Info("starting coven-console",
		"backend", cfg.Backend.BaseURL,
		"admin_id", identity.AdminID,
	)

	backend := api.NewClient(cfg.Backend.BaseURL, token, logger)
	emitter := &reconnectingEmitter{}
	m := metrics.New()

	yellow := color.New(color.FgYellow)
	eng := engine.New(backend, emitter, identity.AdminID, m, logger,
		engine.WithNewUserNotifier(func(userID, displayName string) {
			if displayName == "" {
				displayName = userID
			}
			yellow.Printf("\n★ New conversation: %s\n", displayName)
		}))

	if err := eng.Bootstrap(ctx); err != nil {
		return fmt.Errorf("loading conversations: %w", err)
	}
	fmt.Printf("Tracking %d conversations. /help for commands, Ctrl+C to quit.\n\n", len(eng.Conversations()))

	if cfg.Observer.Enabled {
		obs := observer.New(eng, m, logger)
		srv := &http.Server{Addr: cfg.Observer.ListenAddr, Handler: obs.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("observer server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	go maintainPushChannel(ctx, cfg, token, emitter, eng, logger)
	go renderLoop(ctx, eng)

	if err := interact(ctx, eng); err != nil {
		return err
	}
	fmt.Println("\nGoodbye!")
	return nil
}

// maintainPushChannel keeps one live push connection, reconnecting with
// exponential backoff. The engine sees a gap, not an error: events
// resume when the channel comes back.
func maintainPushChannel(ctx context.Context, cfg *config.Config, token string, emitter *reconnectingEmitter, eng *engine.Engine, logger *slog.Logger) {
	backoff := cfg.Push.ReconnectInitial

	for {
		ch, err := push.Dial(ctx, cfg.Push.URL, token, logger)
		if err == nil {
			emitter.set(ch)
			backoff = cfg.Push.ReconnectInitial
			err = ch.Listen(ctx, eng)
			emitter.set(nil)
			ch.Close()
		}

		if ctx.Err() != nil {
			return
		}
		logger.Warn("push channel down, reconnecting", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > cfg.Push.ReconnectMax {
			backoff = cfg.Push.ReconnectMax
		}
	}
}

// reconnectingEmitter delegates emissions to the current push channel.
// Between connections every emission fails fast, which the engine
// already treats as a degraded-path condition.
type reconnectingEmitter struct {
	mu sync.Mutex
	ch *push.Channel
}

func (r *reconnectingEmitter) set(ch *push.Channel) {
	r.mu.Lock()
	r.ch = ch
	r.mu.Unlock()
}

func (r *reconnectingEmitter) current() (*push.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch == nil {
		return nil, fmt.Errorf("push channel not connected")
	}
	return r.ch, nil
}

func (r *reconnectingEmitter) TypingStart(userID, adminID string) error {
	ch, err := r.current()
	if err != nil {
		return err
	}
	return ch.TypingStart(userID, adminID)
}

func (r *reconnectingEmitter) TypingStop(userID, adminID string) error {
	ch, err := r.current()
	if err != nil {
		return err
	}
	return ch.TypingStop(userID, adminID)
}

func (r *reconnectingEmitter) ApproveResponse(userID, responseID string) error {
	ch, err := r.current()
	if err != nil {
		return err
	}
	return ch.ApproveResponse(userID, responseID)
}

func (r *reconnectingEmitter) RejectResponse(userID, responseID, reason string) error {
	ch, err := r.current()
	if err != nil {
		return err
	}
	return ch.RejectResponse(userID, responseID, reason)
}

func (r *reconnectingEmitter) CancelProcessing(userID, messageID string) error {
	ch, err := r.current()
	if err != nil {
		return err
	}
	return ch.CancelProcessing(userID, messageID)
}

func runInit() error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	starter := `backend:
  base_url: https://backend.example.com
  token: ${COVEN_CONSOLE_TOKEN}

push:
  url: wss://backend.example.com/api/admin/ws
  reconnect_initial: 1s
  reconnect_max: 30s

observer:
  enabled: false
  listen_addr: 127.0.0.1:9190

logging:
  level: info
  format: text
`
	if err := os.WriteFile(configPath, []byte(starter), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Wrote starter config to %s\n", configPath)
	fmt.Println("Edit it, set COVEN_CONSOLE_TOKEN, then run: coven-console run")
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	token, err := cfg.ResolveToken()
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.Backend.BaseURL, token, setupLogger(cfg.Logging))
	convs, err := client.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Backend healthy, %d conversations\n", len(convs))
	return nil
}
