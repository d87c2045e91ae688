// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes sway tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/starford/sway/internal/rig"
	"github.com/starford/sway/internal/swayservice"
)

const referenceURI = "sway://parameters"

// Server wraps the MCP server with sway tools.
type Server struct {
	mcp *server.MCPServer
	svc *swayservice.Service
}

// New creates a new MCP server with all sway tools registered.
func New(svc *swayservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Sway",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("apply_sway",
		mcp.WithDescription("Build a chain from the selected pins of a layer and bind sway motion to it. "+
			"Read the parameter reference first via get_parameter_reference or the sway://parameters resource."),
		mcp.WithString("layer", mcp.Required(), mcp.Description("Layer name")),
		mcp.WithString("pins", mcp.Description("Comma-separated pin names (empty for the layer's selection)")),
		mcp.WithString("preset", mcp.Description("Base preset (e.g. hair, rope)")),
		mcp.WithString("params", mcp.Description("Parameter overrides as a JSON or YAML object")),
		mcp.WithString("root", mcp.Description("Root policy: topmost or first-selected")),
		mcp.WithString("order", mcp.Description("Comma-separated explicit chain order, root first")),
		mcp.WithString("control_name", mcp.Description("Base name of the new control")),
	), s.applySway)

	s.mcp.AddTool(mcp.NewTool("remove_sway",
		mcp.WithDescription("Detach sway motion from the selected pins of a layer."),
		mcp.WithString("layer", mcp.Required(), mcp.Description("Layer name")),
		mcp.WithString("pins", mcp.Description("Comma-separated pin names (empty for the layer's selection)")),
	), s.removeSway)

	s.mcp.AddTool(mcp.NewTool("bake_sway",
		mcp.WithDescription("Bake the sway motion of the selected pins into keyframes on every frame of the timeline."),
		mcp.WithString("layer", mcp.Required(), mcp.Description("Layer name")),
		mcp.WithString("pins", mcp.Description("Comma-separated pin names (empty for the layer's selection)")),
	), s.bakeSway)

	s.mcp.AddTool(mcp.NewTool("list_presets",
		mcp.WithDescription("List built-in and saved presets with their parameters."),
	), s.listPresets)

	s.mcp.AddTool(mcp.NewTool("delete_preset",
		mcp.WithDescription("Delete a saved preset file. Built-in presets cannot be deleted."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Preset name")),
	), s.deletePreset)

	s.mcp.AddTool(mcp.NewTool("list_pins",
		mcp.WithDescription("List the pins of a layer with their positions and sway bindings."),
		mcp.WithString("layer", mcp.Required(), mcp.Description("Layer name")),
	), s.listPins)

	s.mcp.AddTool(mcp.NewTool("evaluate_pin",
		mcp.WithDescription("Evaluate the value of a pin at a time in seconds."),
		mcp.WithString("layer", mcp.Required(), mcp.Description("Layer name")),
		mcp.WithString("pin", mcp.Required(), mcp.Description("Pin name")),
		mcp.WithNumber("t", mcp.Required(), mcp.Description("Time in seconds")),
	), s.evaluatePin)

	s.mcp.AddTool(mcp.NewTool("get_parameter_reference",
		mcp.WithDescription("Returns the sway parameter reference. "+
			"Call this before apply_sway to pick valid parameter values."),
	), s.getParameterReference)

	s.mcp.AddResource(
		mcp.NewResource(referenceURI, "Sway Parameter Reference",
			mcp.WithResourceDescription("Keys, units and ranges of the sway parameter set."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readReferenceResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func optString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return v
	}
	return ""
}

func optList(req mcp.CallToolRequest, key string) []string {
	raw := optString(req, key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func selection(req mcp.CallToolRequest) (swayservice.Selection, error) {
	layer, err := req.RequireString("layer")
	if err != nil {
		return swayservice.Selection{}, err
	}
	return swayservice.Selection{Layer: layer, Pins: optList(req, "pins")}, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) applySway(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := selection(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	root, err := rig.ParseRootPolicy(optString(req, "root"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var overrides map[string]any
	if raw := optString(req, "params"); raw != "" {
		if err := yaml.Unmarshal([]byte(raw), &overrides); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid params: %v", err)), nil
		}
	}

	res, err := s.svc.Apply(ctx, swayservice.ApplyRequest{
		Selection:   sel,
		Preset:      optString(req, "preset"),
		Params:      overrides,
		Root:        root,
		Order:       optList(req, "order"),
		ControlName: optString(req, "control_name"),
	})
	if err != nil {
		if res.LinksApplied > 0 {
			return mcp.NewToolResultError(fmt.Sprintf("%v (%d links applied before the failure)", err, res.LinksApplied)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s (control %s)", res.Message(), res.Control)), nil
}

func (s *Server) removeSway(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := selection(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Remove(ctx, sel)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(res.Message()), nil
}

func (s *Server) bakeSway(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sel, err := selection(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Bake(ctx, sel)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg := res.Message()
	if n := len(res.Report.Skipped); n > 0 {
		msg += fmt.Sprintf(", skipped %d without sway: %s", n, strings.Join(res.Report.Skipped, ", "))
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) listPresets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Presets()), nil
}

func (s *Server) deletePreset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeletePreset(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Deleted preset " + name), nil
}

func (s *Server) listPins(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layer, err := req.RequireString("layer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pins, err := s.svc.Pins(ctx, layer)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(pins), nil
}

func (s *Server) evaluatePin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layer, err := req.RequireString("layer")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pin, err := req.RequireString("pin")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := req.RequireFloat("t")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.Evaluate(ctx, layer, pin, t)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%g,%g", v.X, v.Y)), nil
}

func (s *Server) getParameterReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ParameterReference), nil
}

func (s *Server) readReferenceResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if req.Params.URI != "" && req.Params.URI != referenceURI {
		return nil, errors.New("unknown resource: " + req.Params.URI)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      referenceURI,
			MIMEType: "text/markdown",
			Text:     ParameterReference,
		},
	}, nil
}
