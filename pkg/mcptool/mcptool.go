// Package mcptool exposes the dice roller as Model Context Protocol tools.
package mcptool

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lemonberrylabs/dicenotation/pkg/roll"
	"github.com/lemonberrylabs/dicenotation/pkg/rolllog"
	"github.com/lemonberrylabs/dicenotation/pkg/store"
)

const (
	serverName  = "dicer"
	callTimeout = 10 * time.Second
)

// RollDiceInput represents the MCP tool input for rolling notation.
type RollDiceInput struct {
	Notation string `json:"notation" jsonschema:"dice notation, e.g. 4d6 keep highest 3"`
	Seed     *int64 `json:"seed,omitempty" jsonschema:"optional seed for a reproducible roll"`
}

// RollPresetInput represents the MCP tool input for rolling a preset.
type RollPresetInput struct {
	Name string `json:"name" jsonschema:"preset name"`
	Seed *int64 `json:"seed,omitempty" jsonschema:"optional seed for a reproducible roll"`
}

// RollResult represents the MCP tool output for a roll.
type RollResult struct {
	ID        string          `json:"id" jsonschema:"roll id"`
	Canonical string          `json:"canonical" jsonschema:"canonical form of the notation"`
	Total     int             `json:"total" jsonschema:"result of the roll"`
	Dice      []rolllog.Entry `json:"dice" jsonschema:"every die rolled, in order"`
	Seed      int64           `json:"seed" jsonschema:"seed that reproduces this roll"`
	Preset    string          `json:"preset,omitempty" jsonschema:"preset that was rolled, if any"`
}

// FormatDiceInput represents the MCP tool input for canonicalizing notation.
type FormatDiceInput struct {
	Notation string `json:"notation" jsonschema:"dice notation to canonicalize"`
}

// FormatDiceResult represents the MCP tool output for canonical notation.
type FormatDiceResult struct {
	Canonical string `json:"canonical" jsonschema:"canonical form of the notation"`
}

// ListPresetsInput is empty; list_presets takes no arguments.
type ListPresetsInput struct{}

// PresetSummary describes one preset.
type PresetSummary struct {
	Name        string `json:"name"`
	Notation    string `json:"notation"`
	Description string `json:"description,omitempty"`
}

// ListPresetsResult represents the MCP tool output for listing presets.
type ListPresetsResult struct {
	Presets []PresetSummary `json:"presets"`
}

// RollDiceTool defines the MCP tool schema for rolling dice.
func RollDiceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_dice",
		Description: "Rolls dice notation such as 3d6 + 2, 4d6k3, d20 emphasis or (d4, d6, d8) keep 2",
	}
}

// RollPresetTool defines the MCP tool schema for rolling a named preset.
func RollPresetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_preset",
		Description: "Rolls a named preset",
	}
}

// FormatDiceTool defines the MCP tool schema for canonicalizing notation.
func FormatDiceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "format_dice",
		Description: "Validates dice notation and returns its canonical form without rolling",
	}
}

// ListPresetsTool defines the MCP tool schema for listing presets.
func ListPresetsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_presets",
		Description: "Lists the named presets that roll_preset accepts",
	}
}

// RollDiceHandler executes a roll.
func RollDiceHandler(svc *roll.Service) mcp.ToolHandlerFor[RollDiceInput, RollResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollDiceInput) (*mcp.CallToolResult, RollResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		r, err := svc.Roll(runCtx, roll.Request{Notation: input.Notation, Seed: input.Seed})
		if err != nil {
			return nil, RollResult{}, err
		}
		return nil, rollResult(r), nil
	}
}

// RollPresetHandler executes a preset roll.
func RollPresetHandler(svc *roll.Service) mcp.ToolHandlerFor[RollPresetInput, RollResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RollPresetInput) (*mcp.CallToolResult, RollResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		r, err := svc.RollPreset(runCtx, input.Name, input.Seed)
		if err != nil {
			return nil, RollResult{}, err
		}
		return nil, rollResult(r), nil
	}
}

// FormatDiceHandler canonicalizes notation.
func FormatDiceHandler(svc *roll.Service) mcp.ToolHandlerFor[FormatDiceInput, FormatDiceResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input FormatDiceInput) (*mcp.CallToolResult, FormatDiceResult, error) {
		canonical, err := svc.Format(ctx, input.Notation)
		if err != nil {
			return nil, FormatDiceResult{}, err
		}
		return nil, FormatDiceResult{Canonical: canonical}, nil
	}
}

// ListPresetsHandler lists presets.
func ListPresetsHandler(svc *roll.Service) mcp.ToolHandlerFor[ListPresetsInput, ListPresetsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListPresetsInput) (*mcp.CallToolResult, ListPresetsResult, error) {
		presets, err := svc.Repository().ListPresets(ctx)
		if err != nil {
			return nil, ListPresetsResult{}, fmt.Errorf("list presets: %w", err)
		}
		out := ListPresetsResult{Presets: make([]PresetSummary, 0, len(presets))}
		for _, p := range presets {
			out.Presets = append(out.Presets, PresetSummary{
				Name:        p.Name,
				Notation:    p.Notation,
				Description: p.Description,
			})
		}
		return nil, out, nil
	}
}

func rollResult(r *store.Roll) RollResult {
	return RollResult{
		ID:        r.ID,
		Canonical: r.Canonical,
		Total:     r.Total,
		Dice:      r.Dice,
		Seed:      r.Seed,
		Preset:    r.Preset,
	}
}

// NewServer builds an MCP server with every dice tool registered.
func NewServer(svc *roll.Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	mcp.AddTool(server, RollDiceTool(), RollDiceHandler(svc))
	mcp.AddTool(server, RollPresetTool(), RollPresetHandler(svc))
	mcp.AddTool(server, FormatDiceTool(), FormatDiceHandler(svc))
	mcp.AddTool(server, ListPresetsTool(), ListPresetsHandler(svc))
	return server
}

// Run serves the tools over stdio until ctx is cancelled or the client
// disconnects.
func Run(ctx context.Context, svc *roll.Service, version string) error {
	return NewServer(svc, version).Run(ctx, &mcp.StdioTransport{})
}
