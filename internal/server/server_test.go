package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanglekit/tangle/internal/compiler"
	"github.com/tanglekit/tangle/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 7333},
	}
}

func staticCompile(output string) CompileFunc {
	return func(ctx context.Context) (*compiler.Result, error) {
		return &compiler.Result{Output: output, FilesCompiled: 1}, nil
	}
}

func failingCompile(err error) CompileFunc {
	return func(ctx context.Context) (*compiler.Result, error) {
		return nil, err
	}
}

func TestRefreshStoresDocument(t *testing.T) {
	ps := New(testConfig(), staticCompile("# Compiled\n"), nil)
	ps.Refresh(context.Background())

	doc, err := ps.Document()
	require.NoError(t, err)
	assert.Equal(t, "# Compiled\n", doc)
}

func TestRefreshStoresCompileError(t *testing.T) {
	ps := New(testConfig(), failingCompile(errors.New("entry not found")), nil)
	ps.Refresh(context.Background())

	_, err := ps.Document()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry not found")
}

func TestRefreshRecoversAfterError(t *testing.T) {
	calls := 0
	compile := func(ctx context.Context) (*compiler.Result, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient")
		}
		return &compiler.Result{Output: "recovered\n", FilesCompiled: 1}, nil
	}

	ps := New(testConfig(), compile, nil)
	ps.Refresh(context.Background())
	_, err := ps.Document()
	require.Error(t, err)

	ps.Refresh(context.Background())
	doc, err := ps.Document()
	require.NoError(t, err)
	assert.Equal(t, "recovered\n", doc)
}

func TestHandleIndexEscapesContent(t *testing.T) {
	ps := New(testConfig(), staticCompile("<script>alert(1)</script>\n"), nil)
	ps.Refresh(context.Background())

	rec := httptest.NewRecorder()
	ps.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
	assert.NotContains(t, rec.Body.String(), "<script>alert")
}

func TestHandleIndexShowsCompileError(t *testing.T) {
	ps := New(testConfig(), failingCompile(errors.New("circular reference: a.md -> a.md")), nil)
	ps.Refresh(context.Background())

	rec := httptest.NewRecorder()
	ps.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Compilation failed")
	assert.Contains(t, rec.Body.String(), "circular reference")
}

func TestHandleIndexUnknownPath(t *testing.T) {
	ps := New(testConfig(), staticCompile("doc\n"), nil)
	ps.Refresh(context.Background())

	rec := httptest.NewRecorder()
	ps.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDocumentServesRawMarkdown(t *testing.T) {
	ps := New(testConfig(), staticCompile("# Raw\n\nbody\n"), nil)
	ps.Refresh(context.Background())

	rec := httptest.NewRecorder()
	ps.handleDocument(rec, httptest.NewRequest(http.MethodGet, "/document", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Raw\n\nbody\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
}

func TestHandleDocumentCompileError(t *testing.T) {
	ps := New(testConfig(), failingCompile(errors.New("boom")), nil)
	ps.Refresh(context.Background())

	rec := httptest.NewRecorder()
	ps.handleDocument(rec, httptest.NewRequest(http.MethodGet, "/document", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBroadcastWithoutClients(t *testing.T) {
	ps := New(testConfig(), staticCompile("doc\n"), nil)
	// Must not panic or block with zero connected clients.
	ps.broadcastReload(context.Background())
}

func TestShutdownIdempotent(t *testing.T) {
	ps := New(testConfig(), staticCompile("doc\n"), nil)
	require.NoError(t, ps.Shutdown(context.Background()))
	require.NoError(t, ps.Shutdown(context.Background()))
}
