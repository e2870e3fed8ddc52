// Package web serves folding queries and commands as JSON-RPC over a
// websocket.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/cursorfold/commands"
	"github.com/odvcencio/cursorfold/editor"
	"github.com/odvcencio/cursorfold/folding"
	cflog "github.com/odvcencio/cursorfold/internal/log"
)

// JSON-RPC error codes.
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeExecution      = -32000
)

// Config configures a Server.
type Config struct {
	// Provider supplies ranges for requests that name a uri instead of
	// carrying ranges. Optional.
	Provider commands.RangeProvider
	// Options are the command options used when a request sends none.
	Options commands.Options
	// Validate rejects ranges that are not sorted and laminar.
	Validate bool
	Logger   *slog.Logger
}

// Server provides the websocket JSON-RPC endpoint and metrics.
type Server struct {
	provider commands.RangeProvider
	options  commands.Options
	validate bool
	logger   *slog.Logger
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  []*wsClient
}

// wsClient is one connection and its fold state, one FoldState per uri.
type wsClient struct {
	id       string
	conn     *websocket.Conn
	mu       sync.Mutex
	logger   *slog.Logger
	sessions map[string]*editor.FoldState
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) session(uri string) *editor.FoldState {
	c.mu.Lock()
	defer c.mu.Unlock()
	fs, ok := c.sessions[uri]
	if !ok {
		fs = editor.NewFoldState()
		c.sessions[uri] = fs
	}
	return fs
}

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewServer creates a server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		provider: cfg.Provider,
		options:  cfg.Options,
		validate: cfg.Validate,
		logger:   cflog.WithComponent(logger, "web"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ws":
		s.handleWebSocket(w, r)
	case "/metrics":
		promhttp.Handler().ServeHTTP(w, r)
	case "/healthz":
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	id := uuid.NewString()
	client := &wsClient{
		id:       id,
		conn:     conn,
		logger:   cflog.WithRequestID(s.logger, id),
		sessions: make(map[string]*editor.FoldState),
	}
	s.mu.Lock()
	s.clients = append(s.clients, client)
	s.mu.Unlock()
	client.logger.Debug("client connected", "remote", r.RemoteAddr)

	defer func() {
		conn.Close()
		s.mu.Lock()
		for i, c := range s.clients {
			if c == client {
				s.clients = append(s.clients[:i], s.clients[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		client.logger.Debug("client disconnected")
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			client.logger.Debug("dropping malformed message", "error", err)
			continue
		}
		resp := s.handleRPC(r.Context(), client, req)
		data, err := json.Marshal(resp)
		if err != nil {
			client.logger.Error("encode response", "method", req.Method, "error", err)
			continue
		}
		if err := client.write(data); err != nil {
			return
		}
	}
}

func (s *Server) handleRPC(ctx context.Context, client *wsClient, req rpcRequest) rpcResponse {
	var (
		result any
		err    error
	)
	switch req.Method {
	case "levels":
		result, err = s.rpcLevels(ctx, req)
	case "enclose":
		result, err = s.rpcEnclose(ctx, req)
	case "forest":
		result, err = s.rpcForest(ctx, req)
	case "cover":
		result, err = s.rpcCover(ctx, req)
	case "execute":
		result, err = s.rpcExecute(ctx, client, req)
	case "commands":
		result = map[string]any{"commands": commands.All()}
	default:
		return rpcResponse{
			ID:    req.ID,
			Error: &rpcError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
	if err != nil {
		code := CodeExecution
		var pe paramsError
		if errors.As(err, &pe) {
			code = CodeInvalidParams
		}
		client.logger.Debug("rpc failed", "method", req.Method, "error", err)
		return rpcResponse{ID: req.ID, Error: &rpcError{Code: code, Message: err.Error()}}
	}
	return rpcResponse{ID: req.ID, Result: result}
}

// paramsError marks errors caused by the request's params.
type paramsError struct{ err error }

func (e paramsError) Error() string { return "invalid params: " + e.err.Error() }
func (e paramsError) Unwrap() error { return e.err }

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return paramsError{errors.New("missing params")}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return paramsError{err}
	}
	return nil
}

// rangesParams carry ranges inline or name a document for the provider.
type rangesParams struct {
	URI    string          `json:"uri,omitempty"`
	Ranges []folding.Range `json:"ranges,omitempty"`
}

func (s *Server) resolve(ctx context.Context, p rangesParams) ([]folding.Range, error) {
	ranges := p.Ranges
	if ranges == nil {
		if p.URI == "" {
			return nil, paramsError{errors.New("need ranges or uri")}
		}
		if s.provider == nil {
			return nil, commands.ErrNoProvider
		}
		fetched, err := s.provider.FoldingRanges(ctx, p.URI)
		if err != nil {
			return nil, err
		}
		ranges = fetched
	}
	if s.validate {
		if err := folding.Validate(ranges); err != nil {
			return nil, err
		}
	}
	return ranges, nil
}

func (s *Server) rpcLevels(ctx context.Context, req rpcRequest) (any, error) {
	var p rangesParams
	if err := decode(req.Params, &p); err != nil {
		return nil, err
	}
	ranges, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	groups := folding.GroupLevels(ranges)
	return map[string]any{"levels": groups, "depth": groups.Depth()}, nil
}

func (s *Server) rpcEnclose(ctx context.Context, req rpcRequest) (any, error) {
	var p struct {
		rangesParams
		Line *int `json:"line"`
	}
	if err := decode(req.Params, &p); err != nil {
		return nil, err
	}
	if p.Line == nil {
		return nil, paramsError{errors.New("missing line")}
	}
	ranges, err := s.resolve(ctx, p.rangesParams)
	if err != nil {
		return nil, err
	}
	path := folding.GroupLevels(ranges).Enclose(*p.Line)
	result := map[string]any{"path": path, "depth": path.Depth()}
	if winner, ok := path.Winner(); ok {
		result["winner"] = winner
	}
	return result, nil
}

func (s *Server) rpcForest(ctx context.Context, req rpcRequest) (any, error) {
	var p rangesParams
	if err := decode(req.Params, &p); err != nil {
		return nil, err
	}
	ranges, err := s.resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	return map[string]any{"forest": folding.BuildForest(ranges)}, nil
}

func (s *Server) rpcCover(ctx context.Context, req rpcRequest) (any, error) {
	var p struct {
		rangesParams
		Selections []folding.Selection `json:"selections"`
		Policy     folding.Policy      `json:"policy"`
	}
	if err := decode(req.Params, &p); err != nil {
		return nil, err
	}
	if len(p.Selections) == 0 {
		return nil, paramsError{errors.New("selections must not be empty")}
	}
	ranges, err := s.resolve(ctx, p.rangesParams)
	if err != nil {
		return nil, err
	}
	for i, sel := range p.Selections {
		p.Selections[i] = folding.NewSelection(sel.Start, sel.End)
	}
	matched := folding.Cover(folding.BuildForest(ranges), p.Selections, p.Policy)
	if matched == nil {
		matched = []folding.Range{}
	}
	return map[string]any{"ranges": matched}, nil
}

// executeParams is a commands.Request plus the command to run.
type executeParams struct {
	Command string `json:"command"`
	commands.Request
}

func (s *Server) rpcExecute(ctx context.Context, client *wsClient, req rpcRequest) (any, error) {
	p := executeParams{Request: commands.Request{Options: s.options}}
	if err := decode(req.Params, &p); err != nil {
		return nil, err
	}
	if p.Command == "" {
		return nil, paramsError{errors.New("missing command")}
	}
	if _, ok := commands.Lookup(p.Command); !ok {
		return nil, paramsError{fmt.Errorf("%w: %s", commands.ErrUnknownCommand, p.Command)}
	}

	session := client.session(p.URI)
	if p.Ranges != nil || (p.URI != "" && s.provider != nil) {
		ranges, err := s.resolve(ctx, rangesParams{URI: p.URI, Ranges: p.Ranges})
		if err != nil {
			return nil, err
		}
		session.SetRanges(ranges)
		p.Ranges = ranges
	}

	d := commands.NewDispatcher(s.provider, session,
		commands.WithLogger(client.logger),
		commands.WithValidation(s.validate),
	)
	plan, err := d.Execute(ctx, p.Command, p.Request)
	if err != nil {
		if len(plan) > 0 {
			// Part of the plan reached the session before the failure.
			s.foldsChanged(client, p.URI, session)
		}
		if errors.Is(err, commands.ErrInvalidLevel) {
			return nil, paramsError{err}
		}
		return nil, err
	}

	folded := s.foldsChanged(client, p.URI, session)
	if plan == nil {
		plan = commands.Plan{}
	}
	return map[string]any{"plan": plan, "folded": folded}, nil
}

// foldsChanged broadcasts the session's folded lines and returns them.
func (s *Server) foldsChanged(client *wsClient, uri string, session *editor.FoldState) []int {
	folded := session.Folded()
	if folded == nil {
		folded = []int{}
	}
	s.Broadcast("foldsChanged", map[string]any{
		"uri":        uri,
		"connection": client.id,
		"folded":     folded,
	})
	return folded
}

// Broadcast sends a notification to all connected websocket clients.
func (s *Server) Broadcast(method string, params any) {
	msg, err := json.Marshal(map[string]any{
		"method": method,
		"params": params,
	})
	if err != nil {
		s.logger.Error("encode notification", "method", method, "error", err)
		return
	}
	s.mu.Lock()
	clients := append([]*wsClient(nil), s.clients...)
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			c.logger.Debug("notification dropped", "method", method, "error", err)
		}
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
