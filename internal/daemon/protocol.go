package daemon

import "fmt"

// JSON-RPC 2.0 method names.
const (
	MethodSearch  = "search"
	MethodStatus  = "status"
	MethodPing    = "ping"
	MethodReindex = "reindex"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Daemon-specific error codes.
const (
	ErrCodeSearchFailed  = -32002
	ErrCodeReindexFailed = -32003
)

// MaxLimit caps the number of hits a single search may request.
const MaxLimit = 1000

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Data carries the docdex error
// code (ERR_XXX_NAME) when the failure had one.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("[%s] %s", e.Data, e.Message)
	}
	return e.Message
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// SearchParams are the parameters for the search method.
type SearchParams struct {
	// Query is free text. A query with no terms yields no hits.
	Query string `json:"query"`

	// Limit is the maximum number of hits; 0 uses the configured default.
	Limit int `json:"limit,omitempty"`
}

// Validate normalizes the limit and rejects out-of-range values.
func (p *SearchParams) Validate() error {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Limit > MaxLimit {
		return fmt.Errorf("limit must be at most %d, got %d", MaxLimit, p.Limit)
	}
	return nil
}

// SearchResult is one hit.
type SearchResult struct {
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// ReindexResult is the response to a reindex request.
type ReindexResult struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// StatusResult contains daemon and index status.
type StatusResult struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid"`
	Uptime     string `json:"uptime"`
	Root       string `json:"root"`
	DataDir    string `json:"data_dir,omitempty"`
	Backend    string `json:"backend,omitempty"`
	Snapshot   string `json:"snapshot,omitempty"`
	Documents  int    `json:"documents"`
	Terms      int    `json:"terms"`
	Generation uint64 `json:"generation"`
	Watching   bool   `json:"watching"`
	Version    string `json:"version"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
