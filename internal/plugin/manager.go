package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"movieexplorer/internal/fetch"
)

// DefaultExecutionTimeout is the default timeout for plugin execution
const DefaultExecutionTimeout = time.Second

// phaseDirectiveRegex matches @phase directive in comments
var phaseDirectiveRegex = regexp.MustCompile(`(?m)^//\s*@phase\s+(\S+)`)

// Manager loads JavaScript plugins and exposes them as Data Client interceptors
type Manager struct {
	plugins []*Plugin // filename order
	logger  zerolog.Logger
	timeout time.Duration
	mu      sync.RWMutex
}

// NewManager creates a new Manager
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		logger:  logger.With().Str("component", "plugin-manager").Logger(),
		timeout: DefaultExecutionTimeout,
	}
}

// SetTimeout sets the execution timeout for plugins
func (m *Manager) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		m.timeout = timeout
	}
}

// LoadFromDirectory loads all .js plugins from a directory.
// A missing directory is not an error.
func (m *Manager) LoadFromDirectory(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Warn().Str("directory", dir).Msg("plugins directory does not exist")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat plugins directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("plugins path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read plugins directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	loadedCount := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".js") {
			continue
		}

		if err := m.loadPlugin(filepath.Join(dir, entry.Name())); err != nil {
			m.logger.Error().
				Err(err).
				Str("file", entry.Name()).
				Msg("failed to load plugin")
			continue
		}
		loadedCount++
	}

	m.logger.Info().
		Int("loaded", loadedCount).
		Str("directory", dir).
		Msg("plugins loaded")

	return nil
}

// loadPlugin must be called with mu held
func (m *Manager) loadPlugin(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plugin file: %w", err)
	}
	script := string(content)

	phase := extractPhaseDirective(script)
	switch phase {
	case PhaseRequest, PhaseResponse:
	case "":
		return fmt.Errorf("plugin missing @phase directive")
	default:
		return fmt.Errorf("unknown phase: %s", phase)
	}

	// Compile once to reject syntax errors at load time
	if _, err := NewRuntime(zerolog.Nop()).RunScript(script); err != nil {
		return fmt.Errorf("script error: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), ".js")
	m.plugins = append(m.plugins, &Plugin{
		Name:   name,
		Phase:  phase,
		Script: script,
	})

	m.logger.Info().
		Str("name", name).
		Str("phase", string(phase)).
		Msg("plugin loaded")

	return nil
}

func extractPhaseDirective(script string) Phase {
	matches := phaseDirectiveRegex.FindStringSubmatch(script)
	if len(matches) >= 2 {
		return Phase(strings.ToLower(matches[1]))
	}
	return ""
}

// Plugins returns the loaded plugin names in execution order
func (m *Manager) Plugins() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.plugins))
	for _, p := range m.plugins {
		names = append(names, p.Name)
	}
	return names
}

func (m *Manager) byPhase(phase Phase) []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Plugin
	for _, p := range m.plugins {
		if p.Phase == phase {
			out = append(out, p)
		}
	}
	return out
}

// RequestInterceptors returns one fetch interceptor per request-phase plugin
func (m *Manager) RequestInterceptors() []fetch.RequestInterceptor {
	plugins := m.byPhase(PhaseRequest)
	out := make([]fetch.RequestInterceptor, 0, len(plugins))
	for _, p := range plugins {
		p := p
		out = append(out, func(ctx context.Context, req *fetch.Request) (*fetch.Request, error) {
			return m.interceptRequest(ctx, p, req)
		})
	}
	return out
}

// ResponseInterceptors returns one fetch interceptor per response-phase plugin
func (m *Manager) ResponseInterceptors() []fetch.ResponseInterceptor {
	plugins := m.byPhase(PhaseResponse)
	out := make([]fetch.ResponseInterceptor, 0, len(plugins))
	for _, p := range plugins {
		p := p
		out = append(out, func(ctx context.Context, resp *fetch.Response) (*fetch.Response, error) {
			return m.interceptResponse(ctx, p, resp)
		})
	}
	return out
}

func (m *Manager) interceptRequest(ctx context.Context, p *Plugin, req *fetch.Request) (*fetch.Request, error) {
	msg := map[string]interface{}{
		"method":  req.Method,
		"url":     req.URL,
		"headers": headersToJS(req.Header),
	}
	out, err := m.execute(ctx, p, msg)
	if err != nil || out == nil {
		return req, err
	}

	next := *req
	if v, ok := out["method"].(string); ok && v != "" {
		next.Method = strings.ToUpper(v)
	}
	if v, ok := out["url"].(string); ok && v != "" {
		next.URL = v
	}
	if v, ok := out["headers"].(map[string]interface{}); ok {
		next.Header = headersFromJS(v)
	}
	return &next, nil
}

func (m *Manager) interceptResponse(ctx context.Context, p *Plugin, resp *fetch.Response) (*fetch.Response, error) {
	msg := map[string]interface{}{
		"status":  resp.StatusCode,
		"headers": headersToJS(resp.Header),
		"body":    string(resp.Body),
	}
	out, err := m.execute(ctx, p, msg)
	if err != nil || out == nil {
		return resp, err
	}

	next := *resp
	switch v := out["status"].(type) {
	case int64:
		next.StatusCode = int(v)
	case float64:
		next.StatusCode = int(v)
	}
	if v, ok := out["body"].(string); ok {
		next.Body = []byte(v)
	}
	if v, ok := out["headers"].(map[string]interface{}); ok {
		next.Header = headersFromJS(v)
	}
	return &next, nil
}

type execResult struct {
	out map[string]interface{}
	err error
}

// execute runs intercept(msg) in a fresh runtime bounded by the plugin timeout
func (m *Manager) execute(ctx context.Context, p *Plugin, msg map[string]interface{}) (map[string]interface{}, error) {
	execCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	runtime := NewRuntime(m.logger.With().Str("plugin", p.Name).Logger())

	resultCh := make(chan execResult, 1)
	go func() {
		if _, err := runtime.RunScript(p.Script); err != nil {
			resultCh <- execResult{err: fmt.Errorf("script error: %v", err)}
			return
		}
		out, err := runtime.Intercept(msg)
		resultCh <- execResult{out: out, err: err}
	}()

	select {
	case <-execCtx.Done():
		runtime.Interrupt("execution timed out")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.logger.Warn().
			Str("plugin", p.Name).
			Dur("timeout", m.timeout).
			Msg("plugin execution timed out")
		return nil, newError(p.Name, "execution timed out")
	case res := <-resultCh:
		if res.err != nil {
			m.logger.Error().
				Err(res.err).
				Str("plugin", p.Name).
				Msg("plugin execution failed")
			return nil, newError(p.Name, "%v", res.err)
		}
		return res.out, nil
	}
}

// Close drops all loaded plugins
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins = nil
	m.logger.Info().Msg("plugin manager closed")
}

func headersToJS(h http.Header) map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func headersFromJS(in map[string]interface{}) http.Header {
	h := make(http.Header, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			h.Set(k, val)
		case []interface{}:
			for _, item := range val {
				h.Add(k, fmt.Sprint(item))
			}
		case nil:
		default:
			h.Set(k, fmt.Sprint(val))
		}
	}
	return h
}
