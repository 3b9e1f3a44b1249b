package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/lvec/internal/client"
	"github.com/nickcecere/lvec/internal/config"
	"github.com/nickcecere/lvec/internal/tokens"
	"github.com/nickcecere/lvec/internal/ui"
)

const (
	// MCPVersion is the protocol version we support.
	MCPVersion = "2024-11-05"

	// ServerName is the name reported to clients.
	ServerName = "lvec"

	// maxDocumentPreview bounds document text in tool output.
	maxDocumentPreview = 500
)

// ServerVersion is reported to clients; the CLI overrides it with the build version.
var ServerVersion = "dev"

// Server exposes a client's collections as MCP tools.
type Server struct {
	client  *client.Client
	counter *tokens.Counter
	cfg     *config.Config

	reader *bufio.Reader
	writer io.Writer

	initialized bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithIO replaces stdin/stdout.
func WithIO(r io.Reader, w io.Writer) ServerOption {
	return func(s *Server) {
		s.reader = bufio.NewReader(r)
		s.writer = w
	}
}

// NewServer creates an MCP server over c.
func NewServer(c *client.Client, counter *tokens.Counter, cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		client:  c,
		counter: counter,
		cfg:     cfg,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes requests until EOF or cancellation.
func (s *Server) Run(ctx context.Context) error {
	log.Info("MCP server starting")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := s.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && strings.TrimSpace(line) != "") {
			if errors.Is(err, io.EOF) {
				log.Info("MCP server received EOF, shutting down")
				return nil
			}
			return fmt.Errorf("failed to read request: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.sendError(nil, ErrorCodeParse, "Parse error", err.Error())
			continue
		}

		s.handleRequest(ctx, req)
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) {
	log.Debug("Received request", "method", req.Method, "id", req.ID)

	var result any
	var err error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(req.Params)
	case "initialized", "notifications/initialized":
		s.initialized = true
		log.Info("MCP server initialized")
		return
	case "tools/list":
		result = s.handleListTools()
	case "tools/call":
		result, err = s.handleCallTool(ctx, req.Params)
		if err != nil {
			s.sendError(req.ID, ErrorCodeInvalidParams, "Invalid params", err.Error())
			return
		}
	case "ping":
		result = map[string]any{}
	default:
		if req.ID == nil {
			// Unknown notifications are ignored
			return
		}
		s.sendError(req.ID, ErrorCodeMethodNotFound, "Method not found", req.Method)
		return
	}

	if err != nil {
		s.sendError(req.ID, ErrorCodeInternal, "Internal error", err.Error())
		return
	}

	s.sendResult(req.ID, result)
}

func (s *Server) handleInitialize(params json.RawMessage) (*InitializeResult, error) {
	var p InitializeParams
	if params != nil {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}

	log.Info("Initializing MCP server",
		"clientName", p.ClientInfo.Name,
		"clientVersion", p.ClientInfo.Version,
		"protocolVersion", p.ProtocolVersion,
	)

	return &InitializeResult{
		ProtocolVersion: MCPVersion,
		Capabilities:    ServerCapabilities{Tools: &ToolsCapability{}},
		ServerInfo:      ServerInfo{Name: ServerName, Version: ServerVersion},
	}, nil
}

func (s *Server) handleListTools() *ListToolsResult {
	stringArray := &Property{Type: "string"}

	return &ListToolsResult{Tools: []Tool{
		{
			Name:        "lvec_list_collections",
			Description: "List every collection with its record count and embedding function.",
			InputSchema: JSONSchema{Type: "object"},
		},
		{
			Name:        "lvec_query",
			Description: "Find the documents in a collection closest in meaning to a natural language query.",
			InputSchema: JSONSchema{
				Type: "object",
				Properties: map[string]Property{
					"collection": {Type: "string", Description: "Collection name"},
					"query":      {Type: "string", Description: "The query text"},
					"n_results":  {Type: "number", Description: "Maximum number of results", Default: client.DefaultNResults},
					"where":      {Type: "object", Description: "Metadata equality filter, e.g. {\"policy_type\": \"flights\"}"},
				},
				Required: []string{"collection", "query"},
			},
		},
		{
			Name:        "lvec_add",
			Description: "Add documents to a collection, creating it if needed. Existing IDs are skipped unless upsert is true.",
			InputSchema: JSONSchema{
				Type: "object",
				Properties: map[string]Property{
					"collection": {Type: "string", Description: "Collection name"},
					"ids":        {Type: "array", Description: "Unique document IDs", Items: stringArray},
					"documents":  {Type: "array", Description: "Document texts, parallel to ids", Items: stringArray},
					"metadatas":  {Type: "array", Description: "Optional metadata objects, parallel to ids", Items: &Property{Type: "object"}},
					"upsert":     {Type: "boolean", Description: "Replace documents whose IDs already exist", Default: false},
				},
				Required: []string{"collection", "ids", "documents"},
			},
		},
		{
			Name:        "lvec_count_tokens",
			Description: "Count tokens in texts and estimate the embedding cost.",
			InputSchema: JSONSchema{
				Type: "object",
				Properties: map[string]Property{
					"texts": {Type: "array", Description: "Texts to count", Items: stringArray},
					"model": {Type: "string", Description: "Embedding model used for pricing", Default: config.DefaultOpenAIEmbedModel},
				},
				Required: []string{"texts"},
			},
		},
	}}
}

func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (*CallToolResult, error) {
	var p CallToolParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	log.Debug("Calling tool", "name", p.Name, "arguments", p.Arguments)

	var text string
	var err error

	switch p.Name {
	case "lvec_list_collections":
		text, err = s.toolListCollections(ctx)
	case "lvec_query":
		text, err = s.toolQuery(ctx, p.Arguments)
	case "lvec_add":
		text, err = s.toolAdd(ctx, p.Arguments)
	case "lvec_count_tokens":
		text, err = s.toolCountTokens(p.Arguments)
	default:
		return textResult(fmt.Sprintf("Unknown tool: %s", p.Name), true), nil
	}

	if err != nil {
		return textResult("Error: "+err.Error(), true), nil
	}
	return textResult(text, false), nil
}

func (s *Server) toolListCollections(ctx context.Context) (string, error) {
	infos, err := s.client.ListCollections(ctx)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "No collections.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d collections:\n", len(infos))
	for _, info := range infos {
		fmt.Fprintf(&sb, "- %s (id %s): %d documents, %s/%s\n",
			info.Name, info.ID, info.Count, info.Provider, info.Model)
	}
	return sb.String(), nil
}

func (s *Server) toolQuery(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["collection"].(string)
	query, _ := args["query"].(string)
	if name == "" || query == "" {
		return "", fmt.Errorf("collection and query are required")
	}

	n, err := intArg(args, "n_results", client.DefaultNResults)
	if err != nil {
		return "", err
	}

	var where client.Metadata
	if w, ok := args["where"].(map[string]any); ok && len(w) > 0 {
		where = w
	}

	col, err := s.client.GetCollection(ctx, name)
	if err != nil {
		return "", err
	}

	results, err := col.Query(ctx, client.QueryRequest{Texts: []string{query}, NResults: n, Where: where})
	if err != nil {
		return "", err
	}

	matches := results[0].Matches
	if len(matches) == 0 {
		return "No results found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results:\n\n", len(matches))
	for i, m := range matches {
		fmt.Fprintf(&sb, "[%d] %s %s\n", i+1, m.ID, ui.FormatDistance(m.Distance))
		if len(m.Metadata) > 0 {
			md, _ := json.Marshal(m.Metadata)
			fmt.Fprintf(&sb, "metadata: %s\n", md)
		}
		doc := m.Document
		if len(doc) > maxDocumentPreview {
			doc = doc[:maxDocumentPreview] + "..."
		}
		sb.WriteString(doc)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func (s *Server) toolAdd(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["collection"].(string)
	if name == "" {
		return "", fmt.Errorf("collection is required")
	}

	ids, err := stringsArg(args, "ids")
	if err != nil {
		return "", err
	}
	docs, err := stringsArg(args, "documents")
	if err != nil {
		return "", err
	}

	req := client.AddRequest{IDs: ids, Documents: docs}
	if raw, ok := args["metadatas"].([]any); ok {
		for i, item := range raw {
			m, ok := item.(map[string]any)
			if !ok && item != nil {
				return "", fmt.Errorf("metadatas[%d] must be an object", i)
			}
			req.Metadatas = append(req.Metadatas, client.Metadata(m))
		}
	}

	col, err := s.client.GetOrCreateCollection(ctx, name)
	if err != nil {
		return "", err
	}

	if upsert, _ := args["upsert"].(bool); upsert {
		if err := col.Upsert(ctx, req); err != nil {
			return "", err
		}
		return fmt.Sprintf("Upserted %d documents into %s", len(ids), name), nil
	}

	res, err := col.Add(ctx, req)
	if err != nil {
		return "", err
	}

	text := fmt.Sprintf("Added %d documents to %s", len(res.Added), name)
	if len(res.Skipped) > 0 {
		text += fmt.Sprintf(" (skipped existing IDs: %s)", strings.Join(res.Skipped, ", "))
	}
	return text, nil
}

func (s *Server) toolCountTokens(args map[string]any) (string, error) {
	texts, err := stringsArg(args, "texts")
	if err != nil {
		return "", err
	}

	model, _ := args["model"].(string)
	if model == "" {
		model = config.DefaultOpenAIEmbedModel
	}

	summary := s.counter.Summarize(model, texts)

	var sb strings.Builder
	for i, c := range summary.Counts {
		fmt.Fprintf(&sb, "[%d] %d tokens\n", i+1, c.Tokens)
	}
	fmt.Fprintf(&sb, "Total: %d tokens (%s)\n", summary.Total, summary.Encoding)
	if _, ok := tokens.PricePerMillion(model); ok {
		fmt.Fprintf(&sb, "Estimated cost with %s: %s\n", model, ui.FormatCost(summary.Cost))
	} else {
		fmt.Fprintf(&sb, "No price known for %s\n", model)
	}
	return sb.String(), nil
}

// intArg reads a numeric argument that may arrive as a JSON number or string.
func intArg(args map[string]any, key string, def int) (int, error) {
	switch v := args[key].(type) {
	case nil:
		return def, nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

func stringsArg(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("%s must be a non-empty array of strings", key)
	}

	out := make([]string, len(raw))
	for i, v := range raw {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a string", key, i)
		}
		out[i] = str
	}
	return out, nil
}

func (s *Server) sendResult(id any, result any) {
	s.send(Response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) sendError(id any, code int, message, data string) {
	s.send(Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message, Data: data},
	})
}

func (s *Server) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("Failed to marshal response", "error", err)
		return
	}
	fmt.Fprintln(s.writer, string(data))
}
