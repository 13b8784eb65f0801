package daemon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_JSON(t *testing.T) {
	req := Request{
		JSONRPC: "2.0",
		Method:  MethodSearch,
		Params:  SearchParams{Query: "release notes", Limit: 5},
		ID:      "req-1",
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"jsonrpc":"2.0","method":"search","params":{"query":"release notes","limit":5},"id":"req-1"}`,
		string(data))
}

func TestResponse_Success(t *testing.T) {
	resp := NewSuccessResponse("req-1", []SearchResult{{Title: "a.md", Path: "/r/a.md", Score: 1.25}})

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Equal(t, "req-1", resp.ID)
	assert.NotNil(t, resp.Result)
	assert.Nil(t, resp.Error)
}

func TestResponse_Error(t *testing.T) {
	resp := NewErrorResponse("req-1", ErrCodeInvalidParams, "bad limit")

	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "bad limit", resp.Error.Error())

	resp.Error.Data = "ERR_208_INDEX_LOCKED"
	assert.Equal(t, "[ERR_208_INDEX_LOCKED] bad limit", resp.Error.Error())
}

func TestSearchParams_Validate(t *testing.T) {
	tests := []struct {
		name      string
		params    SearchParams
		wantLimit int
		wantErr   bool
	}{
		{name: "explicit limit", params: SearchParams{Query: "q", Limit: 10}, wantLimit: 10},
		{name: "default limit", params: SearchParams{Query: "q"}, wantLimit: 0},
		{name: "negative limit becomes default", params: SearchParams{Query: "q", Limit: -3}, wantLimit: 0},
		{name: "empty query is allowed", params: SearchParams{}, wantLimit: 0},
		{name: "limit too large", params: SearchParams{Query: "q", Limit: MaxLimit + 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, p.Limit)
		})
	}
}

func TestStatusResult_JSON(t *testing.T) {
	status := StatusResult{Running: true, PID: 42, Root: "/notes", Documents: 3}

	data, err := json.Marshal(status)
	require.NoError(t, err)

	var decoded StatusResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, status, decoded)
	assert.NotContains(t, string(data), "data_dir")
}
