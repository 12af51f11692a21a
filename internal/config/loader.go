package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/dohiam/BLE-protocols/internal/addrbook"
)

// Resolved is a validated Config plus the derived, ready-to-use forms
// of its roster and catalog: an Addr-to-name lookup and a
// UUID-to-name lookup, built once per load so hot-reload swaps a
// single pointer rather than re-parsing on every lookup.
type Resolved struct {
	Config       *Config
	RosterNames  map[addrbook.Addr]string
	CatalogNames map[string]string // UUID (as gattdb.UUID.String renders it) -> name
}

// Loader reads a YAML config file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Resolved
	onChange []func(*Resolved)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{path: path, logger: logger}
	res, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = res
	return l, nil
}

// Current returns the latest successfully loaded, validated config.
func (l *Loader) Current() *Resolved {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads
// successfully. Callbacks run synchronously on the reloading goroutine
// (the fsnotify watch goroutine for a hot reload, or the caller's
// goroutine for an explicit Reload), in registration order.
func (l *Loader) OnChange(fn func(*Resolved)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on
// file changes. A reload that fails to parse or validate is logged and
// the previous config stays in effect — a bad edit never tears down a
// running dispatcher. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.reload(); err != nil {
						l.logger.Warn("config reload failed, keeping previous config", "path", l.path, "error", err)
					}
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn("config watcher error", "error", werr)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*Resolved, error) {
	return l.reload()
}

func (l *Loader) reload() (*Resolved, error) {
	res, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = res
	callbacks := make([]func(*Resolved), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(res)
	}
	return res, nil
}

func (l *Loader) load() (*Resolved, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", l.path, err)
	}

	roster := make(map[addrbook.Addr]string, len(cfg.Roster))
	for _, r := range cfg.Roster {
		addr, err := addrbook.ParseAddr(r.Addr)
		if err != nil {
			return nil, fmt.Errorf("config %s: roster entry %q: %w", l.path, r.Name, err)
		}
		roster[addr] = r.Name
	}
	catalog := make(map[string]string, len(cfg.Catalog))
	for _, c := range cfg.Catalog {
		catalog[normalizeUUID(c.UUID)] = c.Name
	}

	return &Resolved{Config: &cfg, RosterNames: roster, CatalogNames: catalog}, nil
}

func normalizeUUID(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			out = append(out, c-'a'+'A')
		case c == '-':
			continue
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.RuleCapacity == 0 {
		cfg.Engine.RuleCapacity = 20
	}
	if cfg.Engine.MaxNameLength == 0 {
		cfg.Engine.MaxNameLength = 32
	}
	if cfg.Engine.DefaultTimeoutMs == 0 {
		cfg.Engine.DefaultTimeoutMs = 5000
	}
}
