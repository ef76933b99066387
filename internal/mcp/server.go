/*
Package mcp implements the pattern-hub-mcp protocol server.

The server speaks JSON-RPC 2.0 over a byte stream. It reads one framed
message, handles it, writes and flushes the response, then reads the next;
responses therefore leave in request order. Messages without an id are
notifications and are never answered.

Methods: initialize, tools/list, tools/call, prompts/list and
resources/list. tools/call exposes five tools:
  - analyze-project: Analyze a project directory and return a briefing
  - get-patterns: Patterns for a framework, optionally one category
  - search-patterns: Scored search by query, filters, tags and minimum score
  - train-pattern: Add a pattern and persist it
  - get-statistics: Store and session statistics
*/
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/pattern-hub-mcp/internal/briefing"
	"github.com/khanglvm/pattern-hub-mcp/internal/learning"
	"github.com/khanglvm/pattern-hub-mcp/internal/patterns"
	"github.com/khanglvm/pattern-hub-mcp/internal/project"
	"github.com/khanglvm/pattern-hub-mcp/internal/search"
)

// ProjectAnalyzer turns a directory into project facts.
type ProjectAnalyzer interface {
	Analyze(ctx context.Context, path string) (*project.Project, error)
}

// KeywordIndex is the related-pattern index kept in step with the store.
type KeywordIndex interface {
	briefing.RelatedFinder
	IndexPattern(p patterns.Pattern) error
}

// Server handles protocol messages against a pattern store.
type Server struct {
	store    *patterns.Store
	analyzer ProjectAnalyzer
	builder  *briefing.Builder
	index    KeywordIndex
	tracker  *learning.Tracker
	logger   *zap.Logger

	name            string
	version         string
	maxPatterns     int
	maxMessageBytes int
	now             func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithIndex enables keyword fallbacks and keeps idx updated on training.
func WithIndex(idx *search.Indexer) Option {
	return func(s *Server) {
		if idx != nil {
			s.index = idx
		}
	}
}

// WithTracker records session activity.
func WithTracker(t *learning.Tracker) Option {
	return func(s *Server) { s.tracker = t }
}

// WithLogger sets the server's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) Option {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
		if version != "" {
			s.version = version
		}
	}
}

// WithMaxPatterns caps patterns in a project briefing.
func WithMaxPatterns(n int) Option {
	return func(s *Server) { s.maxPatterns = n }
}

// WithMaxMessageBytes bounds inbound frames.
func WithMaxMessageBytes(n int) Option {
	return func(s *Server) { s.maxMessageBytes = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server over store. analyzer may be nil, in which case
// analyze-project reports an error result.
func NewServer(store *patterns.Store, analyzer ProjectAnalyzer, opts ...Option) *Server {
	s := &Server{
		store:           store,
		analyzer:        analyzer,
		logger:          zap.NewNop(),
		name:            "pattern-hub-mcp",
		version:         "dev",
		maxPatterns:     briefing.DefaultMaxPatterns,
		maxMessageBytes: DefaultMaxMessageBytes,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	builderOpts := []briefing.Option{
		briefing.WithLogger(s.logger),
		briefing.WithMaxPatterns(s.maxPatterns),
		briefing.WithClock(s.now),
	}
	if s.index != nil {
		builderOpts = append(builderOpts, briefing.WithRelatedFinder(s.index))
	}
	s.builder = briefing.NewBuilder(store, builderOpts...)

	return s
}

// Run serves stdin/stdout until stdin is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads framed messages from r and writes responses to w. It returns
// nil at clean end of stream, ctx.Err() when cancelled between messages and
// an error wrapping ErrFraming when the input cannot be framed.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := NewReader(r, s.maxMessageBytes)
	writer := NewWriter(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := reader.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("input stream closed")
				return nil
			}
			s.logger.Error("terminating stream", zap.Error(err))
			return err
		}

		resp := s.HandleMessage(ctx, body)
		if resp == nil {
			continue
		}

		data, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error("failed to encode response", zap.Error(err))
			data, _ = json.Marshal(errorResponse(resp.ID, newError(CodeInternalError, "internal error: %v", err)))
		}
		if err := writer.WriteMessage(data); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
}

// HandleMessage handles one message body and returns the response to send,
// or nil when nothing may be sent.
func (s *Server) HandleMessage(ctx context.Context, body []byte) *Response {
	req, rpcErr := decodeRequest(body)
	if req == nil {
		id, ok := recoverID(body)
		if !ok {
			s.logger.Warn("dropping unparseable message without id", zap.Error(rpcErr))
			return nil
		}
		return errorResponse(id, rpcErr)
	}

	if req.IsNotification() {
		s.logger.Debug("notification", zap.String("method", req.Method))
		return nil
	}

	if rpcErr != nil {
		return errorResponse(req.ID, rpcErr)
	}

	result, rpcErr := s.dispatch(ctx, req)
	if rpcErr != nil {
		s.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.Int("code", rpcErr.Code),
			zap.String("message", rpcErr.Message),
		)
		return errorResponse(req.ID, rpcErr)
	}
	return resultResponse(req.ID, result)
}

// dispatch routes a request to its handler.
func (s *Server) dispatch(ctx context.Context, req *Request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(), nil
	case "tools/list":
		return map[string]any{"tools": toolDefinitions}, nil
	case "tools/call":
		return s.handleToolsCall(ctx, req.Params)
	case "prompts/list":
		return map[string]any{"prompts": []any{}}, nil
	case "resources/list":
		return map[string]any{"resources": []any{}}, nil
	default:
		return nil, newError(CodeMethodNotFound, "method not found: %s", req.Method)
	}
}

func (s *Server) handleInitialize() map[string]any {
	return map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	}
}

// track forwards an event when a tracker is configured.
func (s *Server) track(e learning.Event) {
	if s.tracker != nil {
		s.tracker.Track(e)
	}
}
