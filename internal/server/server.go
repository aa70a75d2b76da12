// Package server provides the live preview server. It serves the most
// recently compiled document over HTTP and pushes reload notifications
// to connected browsers over WebSocket whenever a recompile completes.
package server

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/tanglekit/tangle/internal/compiler"
	"github.com/tanglekit/tangle/internal/config"
	"github.com/tanglekit/tangle/internal/logging"
)

// CompileFunc produces a fresh compilation of the entry document. The
// server calls it on startup and on every Refresh.
type CompileFunc func(ctx context.Context) (*compiler.Result, error)

// PreviewServer serves the compiled document with live reload.
type PreviewServer struct {
	cfg     *config.Config
	logger  logging.Logger
	compile CompileFunc

	httpServer  *http.Server
	serverMutex sync.RWMutex

	clients      map[*websocket.Conn]struct{}
	clientsMutex sync.RWMutex

	docMutex   sync.RWMutex
	document   string
	compileErr error
	compiledAt time.Time

	shutdownOnce sync.Once
}

// New creates a preview server. compile must not be nil.
func New(cfg *config.Config, compile CompileFunc, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &PreviewServer{
		cfg:     cfg,
		logger:  logger.WithComponent("server"),
		compile: compile,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start compiles once, then serves until ctx is cancelled or the
// listener fails.
func (ps *PreviewServer) Start(ctx context.Context) error {
	ps.Refresh(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", ps.handleIndex)
	mux.HandleFunc("/document", ps.handleDocument)
	mux.HandleFunc("/ws", ps.handleWebSocket)
	mux.HandleFunc("/health", ps.handleHealth)

	addr := net.JoinHostPort(ps.cfg.Server.Host, fmt.Sprintf("%d", ps.cfg.Server.Port))
	ps.serverMutex.Lock()
	ps.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ps.serverMutex.Unlock()

	ps.logger.Info(ctx, "Preview server listening", "addr", "http://"+addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- ps.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return ps.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown closes all WebSocket clients and stops the HTTP server.
func (ps *PreviewServer) Shutdown(ctx context.Context) error {
	var err error
	ps.shutdownOnce.Do(func() {
		ps.clientsMutex.Lock()
		for conn := range ps.clients {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		ps.clients = make(map[*websocket.Conn]struct{})
		ps.clientsMutex.Unlock()

		ps.serverMutex.RLock()
		srv := ps.httpServer
		ps.serverMutex.RUnlock()
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
		}
	})
	return err
}

// Refresh recompiles the document, stores the result, and notifies all
// connected clients. Compile failures are stored and rendered on the
// index page rather than killing the server.
func (ps *PreviewServer) Refresh(ctx context.Context) {
	result, err := ps.compile(ctx)

	ps.docMutex.Lock()
	ps.compiledAt = time.Now()
	changed := true
	if err != nil {
		ps.compileErr = err
		ps.logger.Error(ctx, err, "Compilation failed")
	} else {
		// Unchanged output after a previously clean compile needs no reload.
		changed = ps.compileErr != nil || result.Output != ps.document
		ps.compileErr = nil
		ps.document = result.Output
		ps.logger.Info(ctx, "Document compiled",
			"files", result.FilesCompiled, "bytes", len(result.Output),
			"duration", result.Duration)
	}
	ps.docMutex.Unlock()

	if changed {
		ps.broadcastReload(ctx)
	}
}

// Document returns the latest compiled output and the error of the
// latest compile attempt, if any.
func (ps *PreviewServer) Document() (string, error) {
	ps.docMutex.RLock()
	defer ps.docMutex.RUnlock()
	return ps.document, ps.compileErr
}

func (ps *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ps.docMutex.RLock()
	doc := ps.document
	compileErr := ps.compileErr
	compiledAt := ps.compiledAt
	ps.docMutex.RUnlock()

	var body string
	if compileErr != nil {
		body = fmt.Sprintf(`<div class="error"><h2>Compilation failed</h2><pre>%s</pre></div>`,
			html.EscapeString(compileErr.Error()))
	} else {
		body = fmt.Sprintf(`<pre class="document">%s</pre>`, html.EscapeString(doc))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexTemplate, compiledAt.Format(time.RFC3339), body)
}

func (ps *PreviewServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := ps.Document()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	fmt.Fprint(w, doc)
}

func (ps *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (ps *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		ps.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}

	ps.clientsMutex.Lock()
	ps.clients[conn] = struct{}{}
	ps.clientsMutex.Unlock()

	// Hold the connection open, discarding any client messages, until
	// the client goes away.
	go func() {
		defer func() {
			ps.clientsMutex.Lock()
			delete(ps.clients, conn)
			ps.clientsMutex.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}()
}

func (ps *PreviewServer) broadcastReload(ctx context.Context) {
	ps.clientsMutex.RLock()
	conns := make([]*websocket.Conn, 0, len(ps.clients))
	for conn := range ps.clients {
		conns = append(conns, conn)
	}
	ps.clientsMutex.RUnlock()

	if len(conns) == 0 {
		return
	}

	var failed []*websocket.Conn
	for _, conn := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.Write(writeCtx, websocket.MessageText, []byte("reload"))
		cancel()
		if err != nil {
			failed = append(failed, conn)
		}
	}

	if len(failed) > 0 {
		ps.clientsMutex.Lock()
		for _, conn := range failed {
			delete(ps.clients, conn)
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
		ps.clientsMutex.Unlock()
	}

	ps.logger.Debug(ctx, "Reload broadcast", "clients", len(conns), "failed", len(failed))
}

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>tangle preview</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; padding: 0 1rem; }
.meta { color: #666; font-size: 0.85rem; margin-bottom: 1rem; }
.document { white-space: pre-wrap; background: #f6f8fa; padding: 1rem; border-radius: 6px; }
.error pre { background: #fff0f0; color: #b00020; padding: 1rem; border-radius: 6px; }
</style>
</head>
<body>
<div class="meta">compiled %s</div>
%s
<script>
(function connect() {
  var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
  ws.onmessage = function(ev) { if (ev.data === "reload") location.reload(); };
  ws.onclose = function() { setTimeout(connect, 1000); };
})();
</script>
</body>
</html>
`
