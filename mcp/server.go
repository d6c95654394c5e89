// Package mcp exposes nutrilens over the Model Context Protocol so an agent
// can validate estimates, log corrections, teach ingredients and read the
// accuracy report. It uses mcp-go with the stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anantham/nutrilens"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported in the MCP initialize handshake.
const Version = "1.0.0"

// Server wraps the MCP server with nutrilens tools.
type Server struct {
	client    *nutrilens.Client
	mcpServer *server.MCPServer
	session   *Session
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// NewServer creates a new MCP server with nutrilens tools registered.
func NewServer(client *nutrilens.Client) *Server {
	s := &Server{
		client:  client,
		session: NewSession(),
	}

	s.mcpServer = server.NewMCPServer(
		"nutrilens",
		Version,
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// Run serves MCP over stdin/stdout until the client disconnects.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
// This is primarily for testing the MCP protocol layer.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "nutrilens_validate", Description: "Check an AI nutrition estimate for physically implausible values"},
		{Name: "nutrilens_record_correction", Description: "Log a user's correction of one AI-estimated nutrition field"},
		{Name: "nutrilens_learn", Description: "Teach a user's ingredient library from a corrected ingredient line"},
		{Name: "nutrilens_library", Description: "List a user's learned ingredients, most confident first"},
		{Name: "nutrilens_forget", Description: "Remove entries from a user's ingredient library"},
		{Name: "nutrilens_report", Description: "Render the AI accuracy report from the correction log"},
		{Name: "nutrilens_store_list", Description: "List local nutrilens stores"},
		{Name: "nutrilens_store_info", Description: "Show statistics for the active store"},
	}
}

// CallTool executes a tool by name with the given arguments.
// This is used for testing and direct invocation.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "nutrilens_validate":
		return s.handleValidate(ctx, args)
	case "nutrilens_record_correction":
		return s.handleRecordCorrection(ctx, args)
	case "nutrilens_learn":
		return s.handleLearn(ctx, args)
	case "nutrilens_library":
		return s.handleLibrary(ctx, args)
	case "nutrilens_forget":
		return s.handleForget(ctx, args)
	case "nutrilens_report":
		return s.handleReport(ctx, args)
	case "nutrilens_store_list":
		return s.handleStoreList(ctx, args)
	case "nutrilens_store_info":
		return s.handleStoreInfo(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func estimateOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("calories", mcp.Description("Total kcal")),
		mcp.WithNumber("protein_g", mcp.Description("Protein in grams")),
		mcp.WithNumber("fat_g", mcp.Description("Fat in grams")),
		mcp.WithNumber("carbohydrates_g", mcp.Description("Carbohydrates in grams")),
		mcp.WithNumber("fiber_g", mcp.Description("Fiber in grams")),
		mcp.WithNumber("sugar_g", mcp.Description("Sugar in grams")),
		mcp.WithNumber("saturated_fat_g", mcp.Description("Saturated fat in grams")),
		mcp.WithNumber("sodium_mg", mcp.Description("Sodium in milligrams")),
	}
}

func (s *Server) registerTools() {
	validateOpts := append([]mcp.ToolOption{
		mcp.WithDescription("Check an AI nutrition estimate for physically implausible values. ERROR issues mean the estimate must be rejected; WARNING issues are informational. Omit fields the AI did not report."),
	}, estimateOptions()...)
	s.mcpServer.AddTool(mcp.NewTool("nutrilens_validate", validateOpts...), s.mcpHandle(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("nutrilens_record_correction",
		mcp.WithDescription("Log a user's correction of one AI-estimated nutrition field. Only record fields the user actually changed."),
		mcp.WithString("field",
			mcp.Description("Field name: calories, protein_g, fat_g, carbohydrates_g, fiber_g, sugar_g, saturated_fat_g, sodium_mg"),
			mcp.Required(),
		),
		mcp.WithNumber("ai_value", mcp.Description("Value the AI estimated")),
		mcp.WithNumber("user_value", mcp.Description("Value the user entered")),
		mcp.WithString("user_id", mcp.Description("User who made the correction")),
		mcp.WithString("meal_id", mcp.Description("Meal the correction belongs to")),
		mcp.WithNumber("confidence", mcp.Description("AI confidence 0.0-1.0 for the original estimate")),
		mcp.WithString("location_type", mcp.Description("Where the meal was eaten, e.g. home or restaurant")),
		mcp.WithString("meal_type", mcp.Description("breakfast, lunch, dinner or snack")),
		mcp.WithString("meal_description", mcp.Description("Free-text meal description")),
	), s.mcpHandle(s.handleRecordCorrection))

	s.mcpServer.AddTool(mcp.NewTool("nutrilens_learn",
		mcp.WithDescription("Teach a user's ingredient library from a corrected ingredient line. Nutrients are totals for the stated quantity; they are converted to per-100g values."),
		mcp.WithString("user_id", mcp.Description("Owner of the library"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Ingredient name as written"), mcp.Required()),
		mcp.WithNumber("quantity", mcp.Description("Amount eaten"), mcp.Required()),
		mcp.WithString("unit", mcp.Description("Unit of quantity, e.g. g, cup, piece"), mcp.Required()),
		mcp.WithNumber("calories", mcp.Description("kcal for the quantity")),
		mcp.WithNumber("protein_g", mcp.Description("Protein grams for the quantity")),
		mcp.WithNumber("fat_g", mcp.Description("Fat grams for the quantity")),
		mcp.WithNumber("carbohydrates_g", mcp.Description("Carbohydrate grams for the quantity")),
	), s.mcpHandle(s.handleLearn))

	s.mcpServer.AddTool(mcp.NewTool("nutrilens_library",
		mcp.WithDescription("List a user's learned ingredients, most confident first. Entries carry session references (I1, I2, ...) usable with nutrilens_forget."),
		mcp.WithString("user_id", mcp.Description("Owner of the library"), mcp.Required()),
		mcp.WithString("prefix", mcp.Description("Only entries whose name starts with this prefix")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default: all)")),
	), s.mcpHandle(s.handleLibrary))

	s.mcpServer.AddTool(mcp.NewTool("nutrilens_forget",
		mcp.WithDescription("Remove entries from a user's ingredient library by session reference (I1, I2) or entry ID."),
		mcp.WithArray("refs",
			mcp.Description("Session refs or entry IDs to remove"),
			mcp.WithStringItems(),
			mcp.Required(),
		),
		mcp.WithString("user_id", mcp.Description("Owner of the entries (only needed for raw entry IDs)")),
	), s.mcpHandle(s.handleForget))

	s.mcpServer.AddTool(mcp.NewTool("nutrilens_report",
		mcp.WithDescription("Render the AI accuracy report: error by field and location, systematic bias and confidence calibration. With user_id, returns that user's per-field accuracy only."),
		mcp.WithString("user_id", mcp.Description("Restrict to one user's corrections")),
	), s.mcpHandle(s.handleReport))

	s.mcpServer.AddTool(mcp.NewTool("nutrilens_store_list",
		mcp.WithDescription("List local nutrilens stores. This is a read-only operation."),
	), s.mcpHandle(s.handleStoreList))

	s.mcpServer.AddTool(mcp.NewTool("nutrilens_store_info",
		mcp.WithDescription("Show statistics for the store this server is bound to. This is a read-only operation."),
	), s.mcpHandle(s.handleStoreInfo))
}

type toolHandler func(ctx context.Context, args map[string]any) (*ToolResult, error)

// mcpHandle adapts an internal handler to the mcp-go handler signature.
func (s *Server) mcpHandle(h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

func errorResult(format string, a ...any) (*ToolResult, error) {
	return &ToolResult{Content: fmt.Sprintf(format, a...), IsError: true}, nil
}

// Internal handlers

func (s *Server) handleValidate(ctx context.Context, args map[string]any) (*ToolResult, error) {
	est := estimateFromArgs(args)
	res := s.client.Validate(ctx, est)
	return &ToolResult{Content: formatValidation(res)}, nil
}

func (s *Server) handleRecordCorrection(ctx context.Context, args map[string]any) (*ToolResult, error) {
	field := stringArg(args, "field")
	if field == "" {
		return errorResult("field is required")
	}

	cc := nutrilens.CorrectionContext{
		UserID:          stringArg(args, "user_id"),
		MealID:          stringArg(args, "meal_id"),
		ConfidenceScore: floatArg(args, "confidence"),
		LocationType:    stringArg(args, "location_type"),
		MealType:        stringArg(args, "meal_type"),
		MealDescription: stringArg(args, "meal_description"),
	}
	if c := cc.ConfidenceScore; c != nil && (*c < nutrilens.ConfidenceMin || *c > nutrilens.ConfidenceMax) {
		return errorResult("confidence must be within [0, 1]")
	}

	rec, err := s.client.RecordCorrection(ctx, field, floatArg(args, "ai_value"), floatArg(args, "user_value"), cc)
	if err != nil {
		return errorResult("record correction failed: %v", err)
	}
	return &ToolResult{Content: formatCorrection(rec)}, nil
}

func (s *Server) handleLearn(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID := stringArg(args, "user_id")
	if userID == "" {
		return errorResult("user_id is required")
	}
	name := stringArg(args, "name")
	if name == "" {
		return errorResult("name is required")
	}

	obs := &nutrilens.IngredientObservation{
		Name:           name,
		Quantity:       floatArg(args, "quantity"),
		Unit:           stringArg(args, "unit"),
		Calories:       floatArg(args, "calories"),
		ProteinG:       floatArg(args, "protein_g"),
		FatG:           floatArg(args, "fat_g"),
		CarbohydratesG: floatArg(args, "carbohydrates_g"),
	}
	res, err := s.client.Learn(ctx, obs, userID)
	if err != nil {
		return errorResult("learn failed: %v", err)
	}
	return &ToolResult{Content: s.formatLearn(res)}, nil
}

func (s *Server) handleLibrary(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID := stringArg(args, "user_id")
	if userID == "" {
		return errorResult("user_id is required")
	}
	limit := 0
	if l := floatArg(args, "limit"); l != nil {
		limit = int(*l)
	}

	entries, err := s.client.Autocomplete(ctx, userID, stringArg(args, "prefix"), limit)
	if err != nil {
		return errorResult("library failed: %v", err)
	}
	return &ToolResult{Content: s.formatLibrary(userID, entries)}, nil
}

func (s *Server) handleForget(ctx context.Context, args map[string]any) (*ToolResult, error) {
	refs := toStringSlice(args["refs"])
	if len(refs) == 0 {
		return errorResult("refs is required")
	}
	fallbackUser := stringArg(args, "user_id")

	var removed, notFound []string
	for _, ref := range refs {
		target, tracked := s.session.Resolve(ref)
		if !tracked {
			if fallbackUser == "" {
				notFound = append(notFound, ref)
				continue
			}
			target = IngredientRef{UserID: fallbackUser, IngredientID: ref}
		}

		err := s.client.Forget(ctx, target.UserID, target.IngredientID)
		switch {
		case err == nil:
			removed = append(removed, ref)
			if tracked {
				s.session.Forget(ref)
			}
		case errors.Is(err, nutrilens.ErrNotFound):
			notFound = append(notFound, ref)
		default:
			return errorResult("forget %s failed: %v", ref, err)
		}
	}
	return &ToolResult{Content: formatForget(removed, notFound)}, nil
}

func (s *Server) handleReport(ctx context.Context, args map[string]any) (*ToolResult, error) {
	if userID := stringArg(args, "user_id"); userID != "" {
		fields, err := s.client.Accuracy().AccuracyForUser(ctx, userID)
		if err != nil {
			return errorResult("report failed: %v", err)
		}
		return &ToolResult{Content: formatUserAccuracy(userID, fields)}, nil
	}

	report, err := s.client.Report(ctx)
	if err != nil {
		return errorResult("report failed: %v", err)
	}
	return &ToolResult{Content: report}, nil
}

// Formatting functions

func formatValidation(res nutrilens.ValidationResult) string {
	var sb strings.Builder
	if res.Valid {
		sb.WriteString("Estimate is plausible.")
	} else {
		sb.WriteString("Estimate rejected: physically implausible.")
	}
	if len(res.Issues) == 0 {
		return sb.String()
	}
	sb.WriteString("\n")
	for _, issue := range res.Issues {
		fmt.Fprintf(&sb, "\n[%s] %s: %s", issue.Severity, issue.Field, issue.Message)
		if issue.SuggestedFix != nil {
			fmt.Fprintf(&sb, " (suggested: %.1f)", *issue.SuggestedFix)
		}
	}
	return sb.String()
}

func formatCorrection(rec *nutrilens.CorrectionRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Recorded correction [%s]:\n  Field: %s\n", rec.ID, rec.FieldName)
	fmt.Fprintf(&sb, "  AI: %s  User: %s\n", formatOptional(rec.AIValue), formatOptional(rec.UserValue))
	if rec.PercentError != nil {
		fmt.Fprintf(&sb, "  Error: %+.2f%% (abs %.2f)", *rec.PercentError, *rec.AbsoluteError)
	} else {
		sb.WriteString("  Error: not derivable")
	}
	return sb.String()
}

func (s *Server) formatLearn(res *nutrilens.LearnResult) string {
	if res.Entry == nil {
		return fmt.Sprintf("Not learned (%s): %s", res.Action, res.Reason)
	}
	e := res.Entry
	ref := s.session.Track(e.UserID, e.ID)
	return fmt.Sprintf("Ingredient %s [%s] %s\n  Samples: %d  Confidence: %.2f\n  Calories: %.1f kcal/100g (sd %.1f)",
		res.Action, ref, e.IngredientName, e.SampleSize, e.ConfidenceScore, e.Calories.Mean, e.StdDevCalories())
}

func (s *Server) formatLibrary(userID string, entries []nutrilens.UserIngredient) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No learned ingredients for %s.", userID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Learned ingredients for %s (%d):\n\n", userID, len(entries))
	for _, e := range entries {
		ref := s.session.Track(e.UserID, e.ID)
		fmt.Fprintf(&sb, "[%s] %s\n", ref, e.IngredientName)
		fmt.Fprintf(&sb, "    Confidence: %.2f  Samples: %d\n", e.ConfidenceScore, e.SampleSize)
		fmt.Fprintf(&sb, "    Per 100g: %.1f kcal, %.1fg protein, %.1fg fat, %.1fg carbs\n",
			e.Calories.Mean, e.Protein.Mean, e.Fat.Mean, e.Carbohydrates.Mean)
		if e.TypicalQuantity != nil {
			fmt.Fprintf(&sb, "    Typical: %.1f %s\n", *e.TypicalQuantity, e.TypicalUnit)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Use nutrilens_forget with session refs (I1, I2, ...) to remove entries.")
	return sb.String()
}

func formatForget(removed, notFound []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Removed: %d entries\n", len(removed))
	for _, r := range removed {
		fmt.Fprintf(&sb, "  - %s\n", r)
	}
	if len(notFound) > 0 {
		fmt.Fprintf(&sb, "Not found: %d refs\n", len(notFound))
		for _, r := range notFound {
			fmt.Fprintf(&sb, "  - %s\n", r)
		}
	}
	return sb.String()
}

func formatUserAccuracy(userID string, fields []nutrilens.FieldAccuracy) string {
	if len(fields) == 0 {
		return fmt.Sprintf("No corrections recorded for %s.", userID)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Accuracy for %s (worst first):\n", userID)
	for _, f := range fields {
		fmt.Fprintf(&sb, "  %-18s mean |error| %7.2f%%  n=%d\n", f.FieldName, f.MeanAbsPercentError, f.Count)
	}
	return sb.String()
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

// Argument helpers. JSON numbers arrive as float64.

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func floatArg(args map[string]any, key string) *float64 {
	switch v := args[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func estimateFromArgs(args map[string]any) nutrilens.NutritionEstimate {
	return nutrilens.NutritionEstimate{
		Calories:       floatArg(args, "calories"),
		ProteinG:       floatArg(args, "protein_g"),
		FatG:           floatArg(args, "fat_g"),
		CarbohydratesG: floatArg(args, "carbohydrates_g"),
		FiberG:         floatArg(args, "fiber_g"),
		SugarG:         floatArg(args, "sugar_g"),
		SaturatedFatG:  floatArg(args, "saturated_fat_g"),
		SodiumMg:       floatArg(args, "sodium_mg"),
	}
}

// toStringSlice converts various array types to []string.
// Handles []any, []string, and nil.
func toStringSlice(v any) []string {
	if v == nil {
		return nil
	}

	switch arr := v.(type) {
	case []string:
		return arr
	case []any:
		result := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
