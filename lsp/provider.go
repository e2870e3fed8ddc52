package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/odvcencio/cursorfold/folding"
	cflog "github.com/odvcencio/cursorfold/internal/log"
)

// ErrUnsupportedLanguage is returned for files with no configured server.
var ErrUnsupportedLanguage = errors.New("no language server for file")

// Dialer starts and connects to the server for a language.
type Dialer func(ctx context.Context, languageID string, cfg ServerConfig) (*Client, error)

// ExecDialer runs cfg.Command as a child process. The process outlives
// the context of the request that started it.
func ExecDialer(ctx context.Context, _ string, cfg ServerConfig) (*Client, error) {
	return NewClient(context.WithoutCancel(ctx), cfg.Command, cfg.Args...)
}

// Provider answers folding range requests by asking a language server.
// One client is kept per language; documents are opened on first use and
// resent on every later request so the server sees the file as on disk.
type Provider struct {
	servers map[string]ServerConfig
	rootURI string
	dial    Dialer
	logger  *slog.Logger

	mu      sync.Mutex
	closed  bool
	clients map[string]*Client
	// docs holds each client's open documents and their versions.
	docs map[*Client]map[string]int
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithServers replaces the language to server mapping.
func WithServers(servers map[string]ServerConfig) ProviderOption {
	return func(p *Provider) {
		p.servers = servers
	}
}

// WithRootURI sets the workspace root sent on initialize.
func WithRootURI(uri string) ProviderOption {
	return func(p *Provider) {
		p.rootURI = uri
	}
}

// WithDialer replaces how servers are started.
func WithDialer(d Dialer) ProviderOption {
	return func(p *Provider) {
		p.dial = d
	}
}

// WithLogger sets the provider's logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider creates a provider using DefaultServers and ExecDialer unless
// overridden.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		servers: DefaultServers(),
		dial:    ExecDialer,
		logger:  slog.Default(),
		clients: make(map[string]*Client),
		docs:    make(map[*Client]map[string]int),
	}
	if wd, err := os.Getwd(); err == nil {
		p.rootURI = URIFromPath(wd)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FoldingRanges implements commands.RangeProvider. uri may be a file://
// URI or a plain path.
func (p *Provider) FoldingRanges(ctx context.Context, uri string) ([]folding.Range, error) {
	path := PathFromURI(uri)
	uri = URIFromPath(path)
	lang := LanguageID(path)
	if lang == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	client, err := p.client(ctx, lang)
	if err != nil {
		return nil, err
	}
	if err := p.sync(client, uri, lang, string(text)); err != nil {
		return nil, err
	}
	raw, err := client.FoldingRanges(ctx, uri)
	if err != nil {
		return nil, err
	}
	ranges := Convert(raw)
	if dropped := len(raw) - len(ranges); dropped > 0 {
		p.logger.Debug("dropped malformed folding ranges", cflog.URIKey, uri, "dropped", dropped)
	}
	return ranges, nil
}

// client returns the running server for lang, starting one if needed.
// The lock is not held while a server starts, so a slow server does not
// block other languages or Close.
func (p *Provider) client(ctx context.Context, lang string) (*Client, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("provider: %w", ErrClosed)
	}
	if c, ok := p.live(lang); ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	cfg, ok := p.servers[lang]
	if !ok || cfg.Command == "" {
		return nil, fmt.Errorf("%w: language %q", ErrUnsupportedLanguage, lang)
	}
	c, err := p.start(ctx, lang, cfg)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = c.Close()
		return nil, fmt.Errorf("provider: %w", ErrClosed)
	}
	if other, ok := p.live(lang); ok {
		// Lost a race with another request for the same language.
		_ = c.Close()
		return other, nil
	}
	p.clients[lang] = c
	p.docs[c] = make(map[string]int)
	p.logger.Info("language server started", "language", lang, "command", cfg.Command)
	return c, nil
}

// live returns the registered client for lang unless its server has died,
// in which case the client and its open documents are forgotten. The
// caller holds p.mu.
func (p *Provider) live(lang string) (*Client, bool) {
	c, ok := p.clients[lang]
	if !ok {
		return nil, false
	}
	select {
	case <-c.Done():
		delete(p.clients, lang)
		delete(p.docs, c)
		p.logger.Warn("language server exited", "language", lang)
		return nil, false
	default:
		return c, true
	}
}

func (p *Provider) start(ctx context.Context, lang string, cfg ServerConfig) (*Client, error) {
	c, err := p.dial(ctx, lang, cfg)
	if err != nil {
		return nil, fmt.Errorf("start %s server: %w", lang, err)
	}
	c.OnNotify(func(method string, _ json.RawMessage) {
		p.logger.Debug("server message", "language", lang, "method", method)
	})
	if err := c.Initialize(ctx, p.rootURI); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize %s server: %w", lang, err)
	}
	return c, nil
}

func (p *Provider) sync(c *Client, uri, lang, text string) error {
	p.mu.Lock()
	docs := p.docs[c]
	version, open := docs[uri]
	version++
	if docs != nil {
		docs[uri] = version
	}
	p.mu.Unlock()

	if open {
		return c.DidChange(uri, version, text)
	}
	return c.DidOpen(uri, lang, version, text)
}

// Close closes every open document and shuts the servers down. Requests
// made after Close fail with ErrClosed.
func (p *Provider) Close() error {
	p.mu.Lock()
	p.closed = true
	clients, docs := p.clients, p.docs
	p.clients = make(map[string]*Client)
	p.docs = make(map[*Client]map[string]int)
	p.mu.Unlock()

	var errs []error
	for lang, c := range clients {
		for uri := range docs[c] {
			_ = c.DidClose(uri)
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s server: %w", lang, err))
		}
	}
	return errors.Join(errs...)
}

// Convert turns server ranges into a sorted laminar list, dropping
// inverted and partially overlapping ranges.
func Convert(raw []FoldingRange) []folding.Range {
	ranges := make([]folding.Range, len(raw))
	for i, fr := range raw {
		ranges[i] = folding.Range{Start: fr.StartLine, End: fr.EndLine}
	}
	return folding.Normalize(ranges)
}

// PathFromURI returns the local path of a file:// URI, or uri unchanged
// when it is not one.
func PathFromURI(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return filepath.FromSlash(u.Path)
}

// URIFromPath returns the file:// URI of path, made absolute.
func URIFromPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
