// Package expander turns one prompt into the fixed set of sub-questions the
// fetch swarm works on.
package expander

import "fmt"

// Angle names one analytical angle applied to a prompt.
type Angle string

const (
	AngleDefinition Angle = "definition"
	AngleMotivation Angle = "motivation"
	AngleMechanism  Angle = "mechanism"
	AngleHistory    Angle = "history"
	AngleTaxonomy   Angle = "taxonomy"
	AngleCritique   Angle = "critique"
)

type template struct {
	angle  Angle
	format string
}

var templates = []template{
	{AngleDefinition, "What is the definition and core concept of '%s'?"},
	{AngleMotivation, "Why is '%s' important or relevant?"},
	{AngleMechanism, "How does '%s' work or what is its mechanism?"},
	{AngleHistory, "When did '%s' become significant or what is its history?"},
	{AngleTaxonomy, "What are the main components or types of '%s'?"},
	{AngleCritique, "What are the primary criticisms or challenges related to '%s'?"},
}

// SubQuestion is one expanded question and the angle it came from.
type SubQuestion struct {
	Angle Angle
	Text  string
}

// Expand applies every angle to prompt, in a fixed order. It never fails and
// always returns len(Angles()) questions; an empty prompt is expanded as-is.
func Expand(prompt string) []string {
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = fmt.Sprintf(t.format, prompt)
	}
	return out
}

// ExpandDetailed is Expand with the angle of each question attached.
func ExpandDetailed(prompt string) []SubQuestion {
	out := make([]SubQuestion, len(templates))
	for i, t := range templates {
		out[i] = SubQuestion{Angle: t.angle, Text: fmt.Sprintf(t.format, prompt)}
	}
	return out
}

// Angles lists the angles in expansion order.
func Angles() []Angle {
	out := make([]Angle, len(templates))
	for i, t := range templates {
		out[i] = t.angle
	}
	return out
}
