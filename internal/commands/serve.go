package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"m2kqa/internal/config"
	"m2kqa/internal/httpserver"
	mcpserver "m2kqa/internal/mcp"
	"m2kqa/internal/notify"
	"m2kqa/internal/qasession"
	"m2kqa/internal/ui"
)

// RunServe is the single entry point for `m2kqa serve`.
//
// Always starts (single port, serve.bind):
//   - HTTP REST + websocket session API
//   - streamable MCP handler mounted at /mcp/
//   - config watcher reloading serve.tokens
//   - desktop, webhook and hook notifications when configured
//   - stdio MCP when stdin is a pipe (e.g. spawned by an MCP client)
func RunServe(ctx context.Context, newToken bool) error {
	// Detect whether we were spawned with a pipe on stdin (MCP client mode).
	stdioMCP := isStdinPipe()

	// When stdio MCP is active, redirect all log/print output to stderr so we
	// don't corrupt the JSON-RPC stream on stdout.
	if stdioMCP {
		ui.Out = os.Stderr
		log.SetOutput(os.Stderr)
	}

	cfg, client, err := loadClient()
	if err != nil {
		return err
	}
	if newToken {
		token, err := generateToken()
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		cfg.Serve.Tokens = append(cfg.Serve.Tokens, token)
		if err := config.Set("serve-tokens", strings.Join(cfg.Serve.Tokens, ",")); err != nil {
			ui.ShowWarning("Could not save generated token: %v", err)
		}
		fmt.Fprintf(ui.Out, "Generated token: %s\n", token)
		fmt.Fprintf(ui.Out, "(saved to %s, send it as \"Authorization: Bearer <token>\")\n", config.ConfigPath)
	}
	if len(cfg.Serve.Tokens) == 0 {
		ui.ShowWarning("No serve.tokens configured; only loopback clients are accepted")
	}

	ctx, cancel := notifyShutdown(ctx)
	defer cancel()

	mgr := qasession.NewManager(client, cfg.SessionOptions())
	if n := buildNotifier(cfg.Notify); n.Len() > 0 {
		sn := notify.NewSessionNotifier(n)
		mgr.SetObserver(sn)
		defer sn.Wait()
		log.Printf("[notify] Sending session events via %s", n.Name())
	}
	srv := httpserver.NewHTTPServer(httpserver.Options{
		Tokens:   cfg.Serve.Tokens,
		Version:  Version,
		Sessions: mgr,
		MCP:      mcpserver.HTTPHandler(mcpserver.NewServer(mgr, Version)),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Serve.Bind)
	})
	g.Go(func() error {
		if err := os.MkdirAll(filepath.Dir(config.ConfigPath), 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		return srv.WatchTokens(gctx, config.ConfigPath, reloadTokens)
	})
	if stdioMCP {
		// Stdout is now exclusively for the MCP JSON-RPC protocol. The server
		// stops when the client closes stdin.
		g.Go(func() error {
			err := mcpserver.RunServer(gctx, mgr, Version)
			if err != nil && gctx.Err() == nil {
				log.Printf("[mcp-stdio] %v", err)
			}
			cancel()
			return nil
		})
	}
	fmt.Fprintf(ui.Out, "HTTP + MCP server listening on %s\n", cfg.Serve.Bind)

	err = g.Wait()
	fmt.Fprintf(ui.Out, "\nShutting down...\n")
	return err
}

// buildNotifier collects the notifiers enabled in c.
func buildNotifier(c config.NotifyConfig) *notify.MultiNotifier {
	var ns []notify.Notifier
	if c.Desktop {
		ns = append(ns, notify.NewDesktopNotifier())
	}
	if c.Webhook != "" {
		ns = append(ns, notify.NewWebhookNotifier(c.Webhook, c.WebhookFormat, c.WebhookTemplate))
	}
	if c.Hook != "" {
		ns = append(ns, notify.NewHookRunner(c.Hook))
	}
	return notify.NewMultiNotifier(ns...)
}

// reloadTokens reads serve.tokens from the configuration file.
func reloadTokens() ([]string, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Serve.Tokens, nil
}

// RunMCP serves the QA tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context) error {
	ui.Out = os.Stderr
	log.SetOutput(os.Stderr)

	cfg, client, err := loadClient()
	if err != nil {
		return err
	}
	ctx, cancel := notifyShutdown(ctx)
	defer cancel()

	mgr := qasession.NewManager(client, cfg.SessionOptions())
	defer mgr.CloseAll()
	if err := mcpserver.RunServer(ctx, mgr, Version); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// isStdinPipe returns true when stdin is a pipe or file (not a terminal),
// i.e. m2kqa was spawned by another process feeding it data.
func isStdinPipe() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}

// generateToken returns a random 32-character hex token.
func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
