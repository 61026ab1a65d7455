package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nerrad567/hassbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hassbridge/internal/rpc"
)

// ServerName is the implementation name announced during initialisation.
const ServerName = "home-assistant-mcp"

// Dispatcher executes one decoded request. Satisfied by *rpc.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *rpc.Request) *rpc.Response
}

// Server wraps an MCP server whose tools call a Dispatcher.
type Server struct {
	mcpServer  *mcp.Server
	dispatcher Dispatcher
	logger     *logging.Logger
	nextID     atomic.Int64
}

// New creates a Server with every tool registered.
//
// Parameters:
//   - d: Dispatcher every tool call runs through
//   - version: Implementation version announced to clients
//   - logger: Logger for tool failures; nil falls back to logging.Default()
func New(d Dispatcher, version string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{
		mcpServer:  mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil),
		dispatcher: d,
		logger:     logger,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport runs the MCP server on transport. Cancellation is a
// clean exit.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// paramsProvider is implemented by every tool input type.
type paramsProvider interface {
	params() map[string]any
}

// addTool registers a tool named after method whose input type is In.
func addTool[In paramsProvider](s *Server, method, description string) {
	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: method, Description: description},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			return s.call(ctx, method, in.params()), nil, nil
		})
}

// call runs one request envelope through the dispatcher and converts the
// reply into a tool result.
func (s *Server) call(ctx context.Context, method string, params map[string]any) *mcp.CallToolResult {
	req := &rpc.Request{
		JSONRPC: rpc.Version,
		ID:      json.RawMessage(strconv.FormatInt(s.nextID.Add(1), 10)),
		Method:  method,
		Params:  params,
	}
	resp := s.dispatcher.Dispatch(rpc.ContextWithRequestID(ctx, uuid.NewString()), req)

	if resp.Error != nil {
		s.logger.Debug("mcp tool call failed", "tool", method, "code", resp.Error.Code, "error", resp.Error.Message)
		return errorResult(resp.Error.Message)
	}
	return textResult(indentJSON(resp.Result))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	//nolint:errcheck // A map of one string cannot fail to marshal
	body, _ := json.Marshal(map[string]string{"error": message})
	res := textResult(string(body))
	res.IsError = true
	return res
}

// indentJSON pretty-prints raw, falling back to the raw text.
func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
