package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/khanglvm/pattern-hub-mcp/internal/learning"
	"github.com/khanglvm/pattern-hub-mcp/internal/patterns"
	"github.com/khanglvm/pattern-hub-mcp/internal/project"
	"github.com/khanglvm/pattern-hub-mcp/internal/search"
	"github.com/khanglvm/pattern-hub-mcp/internal/storage"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type fakeAnalyzer struct {
	project *project.Project
	err     error
	paths   []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, path string) (*project.Project, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	return f.project, nil
}

type testEnv struct {
	dir      string
	store    *patterns.Store
	index    *search.Indexer
	tracker  *learning.Tracker
	analyzer *fakeAnalyzer
	server   *Server
}

// newTestEnv builds a server over a store loaded from files, each mapping
// framework to its patterns.
func newTestEnv(t *testing.T, files map[string][]patterns.Pattern) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	for framework, records := range files {
		data, err := json.Marshal(map[string]any{"patterns": records})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, patterns.FileName(framework)), data, 0644))
	}

	store := patterns.NewStore(dir, patterns.WithLogger(logger), patterns.WithClock(fixedClock))
	_, err := store.Load()
	require.NoError(t, err)

	index, err := search.NewIndexer(logger)
	require.NoError(t, err)
	require.NoError(t, index.Rebuild(store.All()))
	t.Cleanup(func() { index.Close() })

	journal := storage.NewJournal(storage.MemoryDSN, logger)
	t.Cleanup(func() { journal.Close() })
	tracker := learning.NewTracker(journal, logger)
	t.Cleanup(tracker.Stop)

	analyzer := &fakeAnalyzer{}
	server := NewServer(store, analyzer,
		WithIndex(index),
		WithTracker(tracker),
		WithLogger(logger),
		WithServerInfo("pattern-hub-test", "1.2.3"),
		WithClock(fixedClock),
	)

	return &testEnv{
		dir:      dir,
		store:    store,
		index:    index,
		tracker:  tracker,
		analyzer: analyzer,
		server:   server,
	}
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// serve runs input through Serve and returns the decoded responses.
func serve(t *testing.T, s *Server, input string) ([]rpcResponse, error) {
	t.Helper()
	var out bytes.Buffer
	err := s.Serve(context.Background(), strings.NewReader(input), &out)
	return decodeResponses(t, out.Bytes()), err
}

func decodeResponses(t *testing.T, raw []byte) []rpcResponse {
	t.Helper()
	r := NewReader(bytes.NewReader(raw), 0)
	var out []rpcResponse
	for {
		body, err := r.ReadMessage()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		var resp rpcResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		out = append(out, resp)
	}
}

// call sends a single request and returns its response.
func call(t *testing.T, s *Server, method string, params any) rpcResponse {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = params
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)

	responses, err := serve(t, s, frame(string(body)))
	require.NoError(t, err)
	require.Len(t, responses, 1)
	return responses[0]
}

func TestInitialize(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := call(t, env.server, "initialize", map[string]any{"protocolVersion": ProtocolVersion})
	require.Nil(t, resp.Error)
	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.JSONEq(t, "1", string(resp.ID))

	var result struct {
		ProtocolVersion string                     `json:"protocolVersion"`
		Capabilities    map[string]json.RawMessage `json:"capabilities"`
		ServerInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Contains(t, result.Capabilities, "tools")
	assert.Equal(t, "pattern-hub-test", result.ServerInfo.Name)
	assert.Equal(t, "1.2.3", result.ServerInfo.Version)
}

func TestToolsList(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := call(t, env.server, "tools/list", nil)
	require.Nil(t, resp.Error)

	var result struct {
		Tools []struct {
			Name        string `json:"name"`
			InputSchema struct {
				Type     string   `json:"type"`
				Required []string `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	var names []string
	required := map[string][]string{}
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		required[tool.Name] = tool.InputSchema.Required
		assert.Equal(t, "object", tool.InputSchema.Type)
	}
	assert.Equal(t, []string{"analyze-project", "get-patterns", "search-patterns", "train-pattern", "get-statistics"}, names)
	assert.Equal(t, []string{"project_path"}, required["analyze-project"])
	assert.Equal(t, []string{"framework"}, required["get-patterns"])
	assert.Empty(t, required["search-patterns"])
	assert.Equal(t, []string{"id", "category", "framework", "title", "description", "code"}, required["train-pattern"])
	assert.Empty(t, required["get-statistics"])
}

func TestOptionalListMethods(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := call(t, env.server, "prompts/list", nil)
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"prompts":[]}`, string(resp.Result))

	resp = call(t, env.server, "resources/list", map[string]any{"cursor": "x"})
	require.Nil(t, resp.Error)
	assert.JSONEq(t, `{"resources":[]}`, string(resp.Result))
}

func TestUnknownMethodEchoesID(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, id := range []string{`7`, `"abc"`, `null`, `-3.5`} {
		t.Run(id, func(t *testing.T) {
			responses, err := serve(t, env.server, frame(`{"jsonrpc":"2.0","id":`+id+`,"method":"nope/unknown"}`))
			require.NoError(t, err)
			require.Len(t, responses, 1)

			resp := responses[0]
			assert.JSONEq(t, id, string(resp.ID))
			require.NotNil(t, resp.Error)
			assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "nope/unknown")
		})
	}
}

func TestNotificationsAreNeverAnswered(t *testing.T) {
	env := newTestEnv(t, nil)

	bodies := []string{
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":1}}`,
		`{"jsonrpc":"2.0","method":"tools/list"}`,
		`{"jsonrpc":"2.0","method":"totally/unknown"}`,
		`{"jsonrpc":"1.0","method":"initialize"}`,
		`{"method":"no-version"}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"train-pattern","arguments":{}}}`,
		`{"jsonrpc":"2.0"}`,
		`null`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			var out bytes.Buffer
			err := env.server.Serve(context.Background(), strings.NewReader(frame(body)+body+"\n"), &out)
			require.NoError(t, err)
			assert.Empty(t, out.String())
		})
	}
	assert.Equal(t, 0, env.store.Len())
}

func TestParseErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("recoverable id", func(t *testing.T) {
		responses, err := serve(t, env.server, frame(`{"jsonrpc":"2.0","id":42,"method":`))
		require.NoError(t, err)
		require.Len(t, responses, 1)
		assert.JSONEq(t, `42`, string(responses[0].ID))
		require.NotNil(t, responses[0].Error)
		assert.Equal(t, CodeParseError, responses[0].Error.Code)
	})

	t.Run("recoverable string id", func(t *testing.T) {
		responses, err := serve(t, env.server, `{"id": "req-\"9\"", "method": tools/list}`+"\n")
		require.NoError(t, err)
		require.Len(t, responses, 1)
		assert.JSONEq(t, `"req-\"9\""`, string(responses[0].ID))
		assert.Equal(t, CodeParseError, responses[0].Error.Code)
	})

	t.Run("no id", func(t *testing.T) {
		var out bytes.Buffer
		err := env.server.Serve(context.Background(), strings.NewReader("{garbage\nhello\n"+frame(`[1,2`)), &out)
		require.NoError(t, err)
		assert.Empty(t, out.String())
	})
}

func TestInvalidRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"method":"initialize"}`, wantID: `1`},
		{name: "missing version", body: `{"id":2,"method":"initialize"}`, wantID: `2`},
		{name: "missing method", body: `{"jsonrpc":"2.0","id":3}`, wantID: `3`},
		{name: "method not a string", body: `{"jsonrpc":"2.0","id":4,"method":12}`, wantID: `4`},
		{name: "object id", body: `{"jsonrpc":"2.0","id":{"x":1},"method":"initialize"}`, wantID: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responses, err := serve(t, env.server, frame(tt.body))
			require.NoError(t, err)
			require.Len(t, responses, 1)
			assert.JSONEq(t, tt.wantID, string(responses[0].ID))
			require.NotNil(t, responses[0].Error)
			assert.Equal(t, CodeInvalidRequest, responses[0].Error.Code)
		})
	}
}

func TestResponsesFollowRequestOrder(t *testing.T) {
	env := newTestEnv(t, nil)

	input := frame(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`) +
		`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","id":"two","method":"tools/list"}` + "\n" +
		frame(`{"jsonrpc":"2.0","id":3,"method":"missing"}`) +
		frame(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"get-statistics"}}`)

	responses, err := serve(t, env.server, input)
	require.NoError(t, err)
	require.Len(t, responses, 4)

	var ids []string
	for _, r := range responses {
		ids = append(ids, string(r.ID))
	}
	assert.Equal(t, []string{`1`, `"two"`, `3`, `4`}, ids)
	assert.Nil(t, responses[0].Error)
	assert.NotNil(t, responses[2].Error)
	assert.Nil(t, responses[3].Error)
}

func TestFramingErrorTerminatesStream(t *testing.T) {
	env := newTestEnv(t, nil)

	input := frame(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`) +
		"Content-Length: nope\r\n\r\n" +
		frame(`{"jsonrpc":"2.0","id":2,"method":"initialize"}`)

	responses, err := serve(t, env.server, input)
	assert.ErrorIs(t, err, ErrFraming)
	require.Len(t, responses, 1)
	assert.JSONEq(t, `1`, string(responses[0].ID))
}

func TestServeHonorsCancelledContext(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := env.server.Serve(ctx, strings.NewReader(frame(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)), &out)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestNoOutputBeforeInput(t *testing.T) {
	env := newTestEnv(t, nil)

	var out bytes.Buffer
	require.NoError(t, env.server.Serve(context.Background(), strings.NewReader(""), &out))
	assert.Empty(t, out.String())
}

func TestHandleMessageDirect(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Nil(t, env.server.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"x"}`)))

	resp := env.server.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":5,"method":"x"}`))
	require.NotNil(t, resp)
	assert.Equal(t, json.RawMessage(`5`), resp.ID)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}
