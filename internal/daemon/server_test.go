package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
	"github.com/Aman-CERP/docdex/internal/logging"
)

// testSocketPath returns a short unique socket path; t.TempDir paths can
// exceed the sun_path limit on macOS.
func testSocketPath(t *testing.T, prefix string) string {
	t.Helper()
	socketPath := filepath.Join("/tmp", fmt.Sprintf("docdex-%s-%d.sock", prefix, time.Now().UnixNano()))
	t.Cleanup(func() { os.Remove(socketPath) })
	return socketPath
}

// fakeHandler is a scripted RequestHandler.
type fakeHandler struct {
	mu        sync.Mutex
	results   []SearchResult
	searchErr error
	reindexed int
	count     int
	lastQuery SearchParams
}

func (f *fakeHandler) HandleSearch(_ context.Context, params SearchParams) ([]SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = params
	return f.results, f.searchErr
}

func (f *fakeHandler) HandleReindex(_ context.Context) (ReindexResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reindexed++
	return ReindexResult{Status: "success", Count: f.count}, nil
}

func (f *fakeHandler) GetStatus() StatusResult {
	return StatusResult{Root: "/notes", Documents: f.count}
}

// startServer runs a server until the test ends and returns its socket.
func startServer(t *testing.T, h RequestHandler) string {
	t.Helper()
	socketPath := testSocketPath(t, "server")
	srv, err := NewServer(socketPath, logging.Discard())
	require.NoError(t, err)
	if h != nil {
		srv.SetHandler(h)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.ListenAndServe(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	return socketPath
}

// roundTrip sends one raw request and decodes the response.
func roundTrip(t *testing.T, socketPath string, req any) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, json.NewEncoder(conn).Encode(req))
	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

func TestNewServer_RequiresSocketPath(t *testing.T) {
	_, err := NewServer("", nil)
	assert.Error(t, err)
}

func TestServer_ListenAndServe(t *testing.T) {
	socketPath := testSocketPath(t, "listen")
	srv, err := NewServer(socketPath, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	// The socket is removed on shutdown
	assert.NoFileExists(t, socketPath)
}

func TestServer_ReplacesStaleSocket(t *testing.T) {
	socketPath := testSocketPath(t, "stale")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o644))
	srv, err := NewServer(socketPath, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()

	assert.Eventually(t, func() bool {
		conn, err := net.Dial("unix", socketPath)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Dispatch(t *testing.T) {
	h := &fakeHandler{
		results: []SearchResult{{Title: "a.md", Path: "/notes/a.md", Score: 1.5, Snippet: "alpha"}},
		count:   7,
	}
	socketPath := startServer(t, h)

	tests := []struct {
		name     string
		req      Request
		wantCode int
	}{
		{name: "ping", req: Request{JSONRPC: "2.0", Method: MethodPing, ID: "1"}},
		{name: "status", req: Request{JSONRPC: "2.0", Method: MethodStatus, ID: "2"}},
		{name: "search", req: Request{JSONRPC: "2.0", Method: MethodSearch, Params: SearchParams{Query: "alpha"}, ID: "3"}},
		{name: "reindex", req: Request{JSONRPC: "2.0", Method: MethodReindex, ID: "4"}},
		{name: "unknown method", req: Request{JSONRPC: "2.0", Method: "compact", ID: "5"}, wantCode: ErrCodeMethodNotFound},
		{name: "wrong version", req: Request{JSONRPC: "1.0", Method: MethodPing, ID: "6"}, wantCode: ErrCodeInvalidRequest},
		{name: "limit too large", req: Request{JSONRPC: "2.0", Method: MethodSearch, Params: SearchParams{Limit: MaxLimit + 1}, ID: "7"}, wantCode: ErrCodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := roundTrip(t, socketPath, tt.req)

			assert.Equal(t, tt.req.ID, resp.ID)
			if tt.wantCode == 0 {
				assert.Nil(t, resp.Error)
				assert.NotNil(t, resp.Result)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, 1, h.reindexed)
	assert.Equal(t, "alpha", h.lastQuery.Query)
}

func TestServer_ParseError(t *testing.T) {
	socketPath := startServer(t, &fakeHandler{})

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("{not json\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParseError, resp.Error.Code)
}

func TestServer_SearchErrorCarriesCode(t *testing.T) {
	h := &fakeHandler{searchErr: docerrors.New(docerrors.ErrCodeSearchFailed, "boom", nil)}
	socketPath := startServer(t, h)

	resp := roundTrip(t, socketPath, Request{JSONRPC: "2.0", Method: MethodSearch, Params: SearchParams{Query: "x"}, ID: "1"})

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSearchFailed, resp.Error.Code)
	assert.Equal(t, docerrors.ErrCodeSearchFailed, resp.Error.Data)
}

func TestServer_NoHandler(t *testing.T) {
	socketPath := startServer(t, nil)

	search := roundTrip(t, socketPath, Request{JSONRPC: "2.0", Method: MethodSearch, ID: "1"})
	require.NotNil(t, search.Error)
	assert.Equal(t, ErrCodeInternalError, search.Error.Code)

	// Status still reports process details
	status := roundTrip(t, socketPath, Request{JSONRPC: "2.0", Method: MethodStatus, ID: "2"})
	require.Nil(t, status.Error)
	data, err := json.Marshal(status.Result)
	require.NoError(t, err)
	var got StatusResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.Running)
	assert.Equal(t, os.Getpid(), got.PID)
}

func TestServer_ConcurrentConnections(t *testing.T) {
	socketPath := startServer(t, &fakeHandler{count: 1})

	var wg sync.WaitGroup
	for n := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("unix", socketPath)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()

			id := fmt.Sprintf("c-%d", n)
			assert.NoError(t, json.NewEncoder(conn).Encode(Request{JSONRPC: "2.0", Method: MethodPing, ID: id}))
			var resp Response
			if assert.NoError(t, json.NewDecoder(conn).Decode(&resp)) {
				assert.Equal(t, id, resp.ID)
				assert.Nil(t, resp.Error)
			}
		}()
	}
	wg.Wait()
}
