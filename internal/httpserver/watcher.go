package httpserver

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchTokens reloads the bearer tokens with load whenever the file at path
// changes. It watches the parent directory so editors that replace the file
// are noticed too. It returns when ctx is done.
func (s *HTTPServer) WatchTokens(ctx context.Context, path string, load func() ([]string, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	log.Printf("[HTTP] Watching %s for token changes", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != path || e.Op == fsnotify.Chmod {
				continue
			}
			// Saves often arrive as several events.
			drainUntilSilence(w, 100*time.Millisecond)
			tokens, err := load()
			if err != nil {
				log.Printf("[HTTP] Keeping old tokens, reload failed: %v", err)
				continue
			}
			s.SetTokens(tokens)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[HTTP] Config watcher error: %v", err)
		}
	}
}

// drainUntilSilence reads from w.Events until it has been quiet for silenceDur.
func drainUntilSilence(w *fsnotify.Watcher, silenceDur time.Duration) {
	timer := time.NewTimer(silenceDur)
	defer timer.Stop()
	for {
		select {
		case <-w.Events:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(silenceDur)
		case <-timer.C:
			return
		}
	}
}
