package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by calls on a client whose server has gone away.
var ErrClosed = errors.New("lsp client closed")

// Client speaks JSON-RPC 2.0 with Content-Length framing to a language
// server, usually a child process on stdio.
type Client struct {
	cmd      *exec.Cmd
	w        io.WriteCloser
	r        *bufio.Reader
	mu       sync.Mutex
	nextID   atomic.Int64
	pending  map[int64]chan callResult
	onNotify func(method string, params json.RawMessage)
	closed   atomic.Bool
	done     chan struct{}
}

type callResult struct {
	raw json.RawMessage
	err error
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// reply answers a request the server sent us.
type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

// message is any incoming frame. Servers may use string ids for their own
// requests, so the id stays raw until it is matched.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError is an error object returned by the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewClient starts the language server process and returns a Client
// talking to it over stdio.
func NewClient(ctx context.Context, command string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stderr = io.Discard
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	c := NewStreamClient(stdout, stdin)
	c.cmd = cmd
	return c, nil
}

// NewStreamClient returns a Client over an already connected stream pair.
func NewStreamClient(r io.Reader, w io.WriteCloser) *Client {
	c := &Client{
		w:       w,
		r:       bufio.NewReader(r),
		pending: make(map[int64]chan callResult),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// OnNotify registers a callback for server notifications and requests.
func (c *Client) OnNotify(fn func(method string, params json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotify = fn
}

func (c *Client) readLoop() {
	defer c.failPending()
	for {
		msg, err := readMessage(c.r)
		if err != nil {
			return
		}
		switch {
		case msg.Method == "" && msg.ID != nil:
			c.deliver(msg)
		case msg.Method != "":
			if msg.ID != nil {
				// workspace/configuration, progress tokens and the like: an
				// empty success keeps the server from waiting on us.
				_ = c.send(reply{JSONRPC: "2.0", ID: msg.ID})
			}
			c.mu.Lock()
			fn := c.onNotify
			c.mu.Unlock()
			if fn != nil {
				fn(msg.Method, msg.Params)
			}
		}
	}
}

// deliver hands a response to the Call waiting on its id.
func (c *Client) deliver(msg message) {
	var id int64
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	if msg.Error != nil {
		ch <- callResult{err: msg.Error}
	} else {
		ch <- callResult{raw: msg.Result}
	}
	close(ch)
}

// failPending unblocks every waiting Call once the stream ends.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = map[int64]chan callResult{}
	close(c.done)
}

// readMessage reads one framed message.
func readMessage(r *bufio.Reader) (message, error) {
	var contentLength int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return message{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			val := strings.TrimSpace(line[len("content-length:"):])
			if n, err := strconv.Atoi(val); err == nil {
				contentLength = n
			}
		}
	}
	if contentLength <= 0 {
		return message{}, fmt.Errorf("invalid content-length: %d", contentLength)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return message{}, err
	}

	var msg message
	if err := json.Unmarshal(body, &msg); err != nil {
		return message{}, err
	}
	return msg, nil
}

// writeMessage frames msg onto w.
func writeMessage(w io.Writer, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (c *Client) send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	return writeMessage(c.w, msg)
}

// Call sends a request and waits for the response.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan callResult, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if res.err != nil {
			return nil, fmt.Errorf("%s: %w", method, res.err)
		}
		return res.raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a notification (no response expected).
func (c *Client) Notify(method string, params any) error {
	return c.send(notification{JSONRPC: "2.0", Method: method, Params: params})
}

// DidOpen notifies the server that a document is now open.
func (c *Client) DidOpen(uri, languageID string, version int, text string) error {
	return c.Notify("textDocument/didOpen", map[string]any{
		"textDocument": TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    version,
			Text:       text,
		},
	})
}

// DidChange sends the full new text of an open document.
func (c *Client) DidChange(uri string, version int, text string) error {
	return c.Notify("textDocument/didChange", map[string]any{
		"textDocument": VersionedTextDocumentIdentifier{URI: uri, Version: version},
		"contentChanges": []map[string]any{
			{"text": text},
		},
	})
}

// DidClose notifies the server that a document is closed.
func (c *Client) DidClose(uri string) error {
	return c.Notify("textDocument/didClose", map[string]any{
		"textDocument": TextDocumentIdentifier{URI: uri},
	})
}

// FoldingRanges requests textDocument/foldingRange for an open document.
// A null result is an empty list.
func (c *Client) FoldingRanges(ctx context.Context, uri string) ([]FoldingRange, error) {
	result, err := c.Call(ctx, "textDocument/foldingRange", FoldingRangeParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	var ranges []FoldingRange
	if err := json.Unmarshal(result, &ranges); err != nil {
		return nil, fmt.Errorf("decode folding ranges: %w", err)
	}
	return ranges, nil
}

// Initialize performs the initialize handshake, advertising line-only
// folding range support, and sends initialized.
func (c *Client) Initialize(ctx context.Context, rootURI string) error {
	params := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   rootURI,
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"synchronization": map[string]any{},
				"foldingRange": map[string]any{
					"lineFoldingOnly": true,
				},
			},
		},
	}
	if _, err := c.Call(ctx, "initialize", params); err != nil {
		return err
	}
	return c.Notify("initialized", map[string]any{})
}

// Close shuts down the server connection and fails pending requests.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	if c.w != nil {
		_ = c.w.Close()
	}
	c.mu.Unlock()

	if c.cmd != nil {
		return c.cmd.Wait()
	}
	return nil
}

// Done is closed once the server stream ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
