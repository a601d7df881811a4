package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repcounter/internal/models"
)

// --- Tool definitions ---

var toolListExerciseProfiles = mcp.NewTool("list_exercise_profiles",
	mcp.WithDescription("List every calibration profile: exercise name, joint triple, top and bottom angles in degrees, inversion flag and whether it is built-in or taught."),
	mcp.WithString("source", mcp.Description("Only return profiles from this source."), mcp.Enum(string(models.SourceBuiltIn), string(models.SourceTaught))),
)

var toolResolveProfile = mcp.NewTool("resolve_profile",
	mcp.WithDescription("Resolve an exercise name to the profile a session would use. Names are matched case-insensitively after collapsing whitespace; a taught profile wins over the built-in."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Exercise name (e.g. 'squat', 'Bicep Curl')")),
)

var toolGetRepCounterState = mcp.NewTool("get_rep_counter_state",
	mcp.WithDescription("Read the live session: exercise, phase, current and smoothed angle, rep count, last feedback, tracking status and Teach Mode progress."),
)

// --- Tool handlers ---

func (h *handlers) listExerciseProfiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.ds.ListProfiles(ctx)
	if err != nil {
		h.log.Error("mcp list_exercise_profiles", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	if src := req.GetString("source", ""); src != "" {
		filtered := make([]models.CalibrationProfile, 0, len(list))
		for _, p := range list {
			if string(p.Source) == src {
				filtered = append(filtered, p)
			}
		}
		list = filtered
	}

	result, err := mcp.NewToolResultJSON(list)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) resolveProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name parameter is required"), nil
	}

	p, err := h.ds.ResolveProfile(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(p)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getRepCounterState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := h.ds.SessionState(ctx)
	if err != nil {
		h.log.Error("mcp get_rep_counter_state", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(snap)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
