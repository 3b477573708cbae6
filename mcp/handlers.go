package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/termfx/pforge/core"
	"github.com/termfx/pforge/mcp/prompts"
	"github.com/termfx/pforge/mcp/resources"
)

type listToolsResult struct {
	Tools      []core.Definition `json:"tools"`
	NextCursor *string           `json:"nextCursor,omitempty"`
}

type listPromptsResult struct {
	Prompts    []prompts.Definition `json:"prompts"`
	NextCursor *string              `json:"nextCursor,omitempty"`
}

type listResourcesResult struct {
	Resources  []resources.Definition `json:"resources"`
	NextCursor *string                `json:"nextCursor,omitempty"`
}

// ContentBlock is a unit of textual content returned by prompts or tools.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	URI      string `json:"uri,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// CallToolResult models the standard MCP response payload for tool calls.
type CallToolResult struct {
	Content           []ContentBlock `json:"content"`
	StructuredContent any            `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError,omitempty"`
}

// PromptMessage is one message of a rendered prompt.
type PromptMessage struct {
	Role    string       `json:"role"`
	Content ContentBlock `json:"content"`
}

type getPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// ResourceContent is one resolved resource body.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

type readResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

func (s *Server) registerHandlers() {
	s.router.
		Handle("initialize", s.handleInitialize).
		Handle("ping", s.handlePing).
		Handle("tools/list", s.handleListTools).
		Handle("tools/call", s.handleCallTool).
		Handle("prompts/list", s.handleListPrompts).
		Handle("prompts/get", s.handleGetPrompt).
		Handle("resources/list", s.handleListResources).
		Handle("resources/read", s.handleReadResource).
		Handle("logging/setLevel", s.handleSetLoggingLevel).
		HandleNotification("notifications/initialized", func(context.Context, Notification) error {
			return nil
		}).
		HandleNotification("notifications/cancelled", s.handleCancelledNotification)
}

// handleInitialize performs the MCP initialization handshake.
func (s *Server) handleInitialize(_ context.Context, req Request) Response {
	result := map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"prompts":   map[string]any{},
			"resources": map[string]any{},
			"logging":   map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.config.ServerName,
			"version": s.config.ServerVersion,
		},
	}
	return SuccessResponse(req.ID, result)
}

func (s *Server) handlePing(_ context.Context, req Request) Response {
	return SuccessResponse(req.ID, map[string]any{})
}

// handleListTools returns available tools to the client.
func (s *Server) handleListTools(_ context.Context, req Request) Response {
	params, err := decodeListParams(req.Params)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid pagination parameters")
	}

	page, nextCursor, err := paginate(s.registry.Definitions(), params.Cursor, params.Limit)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, err.Error())
	}
	return SuccessResponse(req.ID, listToolsResult{Tools: page, NextCursor: nextCursor})
}

// handleCallTool executes a specific tool through the middleware chain.
func (s *Server) handleCallTool(ctx context.Context, req Request) Response {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid params structure")
	}

	progressStatus := "completed"
	if token, ok := req.Meta.ProgressToken(); ok {
		s.sendProgressNotification(token, 0, 100, "queued")
		defer func() {
			s.sendProgressNotification(token, 100, 100, progressStatus)
		}()
	}

	out, err := s.Dispatch(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, core.ErrToolNotFound) {
			progressStatus = "failed"
			return errorResponseFor(req.ID, err)
		}
		if errors.Is(err, context.Canceled) {
			progressStatus = "cancelled"
			return SuccessResponse(req.ID, errorToolResult(-32800, "Request cancelled"))
		}

		progressStatus = "failed"
		unified := core.AsError(err)
		return SuccessResponse(req.ID, errorToolResult(codeForKind(unified.Kind), unified.Error()))
	}

	return SuccessResponse(req.ID, toolResult(out))
}

// toolResult wraps serialized handler output into a CallToolResult,
// exposing decoded JSON as structured content.
func toolResult(out []byte) CallToolResult {
	result := CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: string(out)}},
	}
	var structured any
	if err := json.Unmarshal(out, &structured); err == nil {
		result.StructuredContent = structured
	}
	return result
}

func errorToolResult(code int, message string) CallToolResult {
	return CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: message}},
		StructuredContent: map[string]any{
			"code":    code,
			"message": message,
		},
		IsError: true,
	}
}

// handleListPrompts returns available prompts to the client.
func (s *Server) handleListPrompts(_ context.Context, req Request) Response {
	params, err := decodeListParams(req.Params)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid pagination parameters")
	}

	page, nextCursor, err := paginate(s.promptMgr.Definitions(), params.Cursor, params.Limit)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, err.Error())
	}
	return SuccessResponse(req.ID, listPromptsResult{Prompts: page, NextCursor: nextCursor})
}

// handleGetPrompt renders a prompt with the supplied arguments.
func (s *Server) handleGetPrompt(_ context.Context, req Request) Response {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid params structure")
	}

	rendered, err := s.promptMgr.Render(params.Name, params.Arguments)
	if err != nil {
		return errorResponseFor(req.ID, err)
	}

	prompt, _ := s.promptMgr.Get(params.Name)
	return SuccessResponse(req.ID, getPromptResult{
		Description: prompt.Description,
		Messages: []PromptMessage{
			{Role: "user", Content: ContentBlock{Type: "text", Text: rendered}},
		},
	})
}

// handleListResources returns available resources to the client.
func (s *Server) handleListResources(_ context.Context, req Request) Response {
	params, err := decodeListParams(req.Params)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid pagination parameters")
	}

	page, nextCursor, err := paginate(s.resourceMgr.Definitions(), params.Cursor, params.Limit)
	if err != nil {
		return ErrorResponse(req.ID, InvalidParams, err.Error())
	}
	return SuccessResponse(req.ID, listResourcesResult{Resources: page, NextCursor: nextCursor})
}

// handleReadResource resolves a URI and returns its content.
func (s *Server) handleReadResource(ctx context.Context, req Request) Response {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return ErrorResponse(req.ID, InvalidParams, "Invalid params structure")
	}

	content, resource, err := s.resourceMgr.Read(ctx, params.URI)
	if err != nil {
		return errorResponseFor(req.ID, err)
	}

	return SuccessResponse(req.ID, readResourceResult{
		Contents: []ResourceContent{
			{URI: params.URI, MimeType: resource.MimeType, Text: content},
		},
	})
}

// handleCancelledNotification aborts the named in-flight request.
func (s *Server) handleCancelledNotification(_ context.Context, msg Notification) error {
	var params struct {
		RequestID any `json:"requestId"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	s.cancelInflight(stringifyID(params.RequestID))
	return nil
}
