package synthesis

import "fmt"

// VerifiedPrefix marks consolidated content.
const VerifiedPrefix = "[Verified Fact] "

// DegradedAnswer is returned to the user when synthesis fails.
const DegradedAnswer = "I'm sorry, the powerful AI model is currently unavailable. Please try again later."

// FactChecker cross-checks gated content before synthesis. Consolidation
// currently marks the content as verified and never fails.
type FactChecker struct{}

// Consolidate returns the verified form of content.
func (FactChecker) Consolidate(content string) string {
	return VerifiedPrefix + content
}

// BuildPrompt wraps verified information and the user's question into the
// synthesis prompt.
func BuildPrompt(userPrompt, information string) string {
	return fmt.Sprintf(
		"Based on the following verified information, please provide a comprehensive answer to the user's query: '%s'\n\nInformation: %s",
		userPrompt, information)
}

// BuildReportPrompt asks for an answer grounded in a research report.
func BuildReportPrompt(userPrompt, report string) string {
	return fmt.Sprintf(
		"Summarize the following Research Report into a clear answer to the user's query: '%s'\n\n%s",
		userPrompt, report)
}
