package enrich

import (
	"context"
	"strings"
)

// PlaceholderGraphURL is served for every visualization request until real
// chart rendering exists.
const PlaceholderGraphURL = "/api/static/placeholder_graph.png"

// PlaceholderGraphFile is the file name under the static directory.
const PlaceholderGraphFile = "placeholder_graph.png"

var visualizationTriggers = []string{"bar chart", "graph"}

// IsVisualizationRequest reports whether prompt asks for a chart.
func IsVisualizationRequest(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, t := range visualizationTriggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Visualizer returns a chart URL for visualization prompts.
type Visualizer struct{}

// Visualize returns the chart URL for prompt, or false if prompt is not a
// visualization request.
func (Visualizer) Visualize(_ context.Context, prompt string) (string, bool) {
	if !IsVisualizationRequest(prompt) {
		return "", false
	}
	return PlaceholderGraphURL, true
}

// Enricher picks the image for an answer.
type Enricher struct {
	Visualizer Visualizer
	Images     ImageFinder
}

// ImageFor returns the image URL for an answer to prompt, or nil. A
// visualization always wins over a stock photo.
func (e *Enricher) ImageFor(ctx context.Context, prompt, answer string) *string {
	if u, ok := e.Visualizer.Visualize(ctx, prompt); ok {
		return &u
	}
	if e.Images == nil {
		return nil
	}
	if u, ok := e.Images.FindImage(ctx, answer); ok {
		return &u
	}
	return nil
}
