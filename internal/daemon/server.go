package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
)

// ioTimeout bounds reading a request and writing its response. Handling
// itself is bounded by the request context only, since a reindex of a
// large tree can take minutes.
const ioTimeout = 30 * time.Second

// RequestHandler handles incoming RPC requests.
type RequestHandler interface {
	HandleSearch(ctx context.Context, params SearchParams) ([]SearchResult, error)
	HandleReindex(ctx context.Context) (ReindexResult, error)
	GetStatus() StatusResult
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	logger     *slog.Logger
	grace      time.Duration
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string, logger *slog.Logger) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		logger:     logger,
		grace:      10 * time.Second,
	}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// SetShutdownGracePeriod bounds how long ListenAndServe waits for
// in-flight requests after its context is cancelled.
func (s *Server) SetShutdownGracePeriod(d time.Duration) {
	if d > 0 {
		s.grace = d
	}
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// A socket left by a crashed daemon would make Listen fail.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		s.logger.Warn("socket_chmod_failed", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("daemon_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
		s.logger.Warn("daemon_shutdown_timeout", slog.Duration("grace", s.grace))
	}

	return ctx.Err()
}

// handleConnection serves one request on conn.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(ioTimeout)); err != nil {
		s.logger.Warn("conn_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	s.logger.Debug("rpc_handled",
		slog.String("method", req.Method),
		slog.String("id", req.ID),
		slog.Bool("ok", resp.Error == nil),
		slog.Duration("duration", time.Since(start)))

	_ = conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	if err := encoder.Encode(resp); err != nil {
		s.logger.Warn("rpc_write_failed",
			slog.String("method", req.Method),
			slog.String("error", err.Error()))
	}
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())

	case MethodSearch:
		return s.handleSearch(ctx, req)

	case MethodReindex:
		return s.handleReindex(ctx, req)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no search handler configured")
	}

	// Params arrive as a generic map; round-trip them into the typed struct.
	paramsData, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params")
	}
	var params SearchParams
	if err := json.Unmarshal(paramsData, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	results, err := s.handler.HandleSearch(ctx, params)
	if err != nil {
		return errorResponse(req.ID, ErrCodeSearchFailed, err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return NewSuccessResponse(req.ID, results)
}

func (s *Server) handleReindex(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no reindex handler configured")
	}

	result, err := s.handler.HandleReindex(ctx)
	if err != nil {
		return errorResponse(req.ID, ErrCodeReindexFailed, err)
	}
	return NewSuccessResponse(req.ID, result)
}

// errorResponse carries err's docdex code, if any, in the error data.
func errorResponse(id string, code int, err error) Response {
	resp := NewErrorResponse(id, code, err.Error())
	resp.Error.Data = docerrors.GetCode(err)
	return resp
}

// getStatus merges the handler's index status with process details.
func (s *Server) getStatus() StatusResult {
	var status StatusResult
	if s.handler != nil {
		status = s.handler.GetStatus()
	}

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status.Running = true
	status.PID = os.Getpid()
	status.Uptime = time.Since(started).Round(time.Second).String()
	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
