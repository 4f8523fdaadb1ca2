package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

const pollInterval = 60 * time.Second

// StartWatcher reloads the config file on change. fsnotify is the fast path;
// a slow polling loop runs as safety net for editors that replace the file
// or filesystems without inotify support.
func (h *Holder) StartWatcher(ctx context.Context, path string) {
	if path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	usePolling := false
	if err != nil {
		log.Printf("config watcher: fsnotify failed (%v), falling back to polling", err)
		usePolling = true
	} else if err := watcher.Add(path); err != nil {
		log.Printf("config watcher: cannot watch %s (%v), falling back to polling", path, err)
		usePolling = true
		watcher.Close()
	}

	if !usePolling {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
						// Debounce: editors often write in bursts
						time.Sleep(100 * time.Millisecond)
						h.reload(path)
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("config watcher error: %v", err)
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		var lastMod time.Time
		if info, err := os.Stat(path); err == nil {
			lastMod = info.ModTime()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				lastMod = h.reloadIfChanged(path, lastMod)
			}
		}
	}()
}

// reloadIfChanged reloads only when the file's mtime moved past lastMod, so
// the polling safety net stays quiet on unchanged files. Returns the mtime to
// carry into the next tick.
func (h *Holder) reloadIfChanged(path string, lastMod time.Time) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return lastMod
	}
	if !info.ModTime().After(lastMod) {
		return lastMod
	}
	h.reload(path)
	return info.ModTime()
}

func (h *Holder) reload(path string) {
	cfg, err := Load(path)
	if err != nil {
		log.Printf("config reload failed, keeping previous: %v", err)
		return
	}

	// Only the rate-limit subset is safe to swap at runtime; splice it into
	// a copy of the current config so connection wiring stays untouched.
	cur := *h.Get()
	cur.RateLimit = cfg.RateLimit
	h.swap(&cur)
	log.Printf("config reloaded from %s", path)
}
