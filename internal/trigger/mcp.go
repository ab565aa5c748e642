package trigger

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/JaimeStill/docintel/internal/pipeline"
)

// ProcessInput is the input schema for the process_document tool.
type ProcessInput struct {
	Key       string `json:"key" jsonschema:"object key under the intake/ prefix"`
	Bucket    string `json:"bucket,omitempty" jsonschema:"storage container (defaults to the configured container)"`
	MediaType string `json:"media_type,omitempty" jsonschema:"declared media type overriding the stored content type"`
}

// ProcessOutput is the output schema for the process_document tool.
type ProcessOutput struct {
	RunID       string  `json:"run_id"`
	State       string  `json:"state"`
	Label       string  `json:"label,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	TextKey     string  `json:"text_key,omitempty"`
	ReportKey   string  `json:"report_key,omitempty"`
	FailedStage string  `json:"failed_stage,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// MCPServer exposes the pipeline as an MCP tool.
type MCPServer struct {
	proc      Processor
	container string
	server    *mcp.Server
}

// NewMCPServer creates an MCP server with the process_document tool.
func NewMCPServer(proc Processor, container, version string) *MCPServer {
	s := &MCPServer{
		proc:      proc,
		container: container,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "docintel",
			Version: version,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "process_document",
		Description: "Classify a document in the intake prefix, extract its fields and write an HTML report",
	}, s.handleProcess)

	return s
}

// Server returns the underlying MCP server.
func (s *MCPServer) Server() *mcp.Server {
	return s.server
}

// Run serves the tool over stdio until ctx is cancelled.
func (s *MCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves the tool over streamable HTTP.
func (s *MCPServer) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// handleProcess reports a failed run in its output rather than as a tool
// error; only a rejected trigger is a tool error.
func (s *MCPServer) handleProcess(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProcessInput,
) (*mcp.CallToolResult, ProcessOutput, error) {
	bucket := input.Bucket
	if bucket == "" {
		bucket = s.container
	}

	run, err := s.proc.Run(ctx, pipeline.Trigger{
		Bucket:    bucket,
		Key:       input.Key,
		MediaType: input.MediaType,
	})
	if run == nil {
		return nil, ProcessOutput{}, err
	}

	out := ProcessOutput{
		RunID:       run.ID.String(),
		State:       string(run.State),
		TextKey:     run.TextKey(),
		ReportKey:   run.ReportKey(),
		FailedStage: string(run.FailedStage),
		ErrorKind:   string(run.ErrorKind),
		Error:       run.Error,
	}
	if run.Classification != nil {
		out.Label = string(run.Classification.Label)
		out.Confidence = run.Classification.Confidence
	}
	return nil, out, nil
}
