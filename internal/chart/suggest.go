package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/insightduck/insightduck/internal/profile"
)

// SuggestionParams names the axis columns a suggested chart should use.
type SuggestionParams struct {
	XAxis string `json:"x_axis"`
	YAxis string `json:"y_axis,omitempty"`
}

// Suggestion is one advisory chart proposal from the LLM collaborator.
type Suggestion struct {
	ChartType   string           `json:"chart_type"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Parameters  SuggestionParams `json:"parameters"`
}

// Suggester asks the chat collaborator for chart proposals based on a
// table's schema and a small row sample.
type Suggester struct {
	profiler *profile.Profiler
	client   ChatClient
	logger   *slog.Logger
}

// NewSuggester creates a Suggester.
func NewSuggester(profiler *profile.Profiler, client ChatClient, logger *slog.Logger) *Suggester {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Suggester{profiler: profiler, client: client, logger: logger}
}

// SuggestCharts builds a schema+sample prompt, calls the collaborator and
// validates its output. Suggestions with unknown chart types are dropped; a
// response that does not parse as JSON is surfaced as an error rather than
// swallowed, so the caller can distinguish collaborator failure from "no
// suggestions".
func (s *Suggester) SuggestCharts(ctx context.Context, table string) ([]Suggestion, error) {
	prof, err := s.profiler.DataProfile(ctx, table)
	if err != nil {
		return nil, err
	}

	prompt, err := buildPrompt(prof)
	if err != nil {
		return nil, err
	}

	content, err := s.client.ChatCompletion(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("chart suggestion collaborator failed: %w", err)
	}

	var raw []Suggestion
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse chart suggestions: %w", err)
	}

	suggestions := []Suggestion{}
	for _, sg := range raw {
		if !KnownType(sg.ChartType) {
			s.logger.Debug("dropping suggestion with unknown chart type", "chart_type", sg.ChartType)
			continue
		}
		if sg.Parameters.XAxis == "" {
			continue
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, nil
}

func buildPrompt(prof *profile.Profile) (string, error) {
	schema, err := json.Marshal(prof.Schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	sample, err := json.Marshal(prof.SamplePreview)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sample: %w", err)
	}

	var b strings.Builder
	b.WriteString("Given the following table schema and sample rows, suggest up to 4 charts.\n")
	b.WriteString("Respond with a JSON array only, no prose. Each element must look like:\n")
	b.WriteString(`{"chart_type": "bar_chart|histogram|scatter_plot", "title": "...", "description": "...", "parameters": {"x_axis": "...", "y_axis": "..."}}`)
	b.WriteString("\n\nSchema:\n")
	b.Write(schema)
	b.WriteString("\n\nSample rows:\n")
	b.Write(sample)
	return b.String(), nil
}

// stripCodeFences removes a surrounding markdown code fence, which chat
// models add even when told not to.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
