package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
)

// ReflectionInput is what a Generator knows about one contest problem.
type ReflectionInput struct {
	ProblemName      string
	ProblemURL       string
	Topic            string
	Difficulty       int
	Solved           bool
	TimeTakenSeconds *int
	EditorialText    string
	EditorialURL     string
	UserApproach     string
	UserRating       int
}

// ReflectionOutput is a parsed completion. Error is set when no provider
// answered or the answer could not be parsed at all.
type ReflectionOutput struct {
	PivotSentence  string
	Tips           string
	WhatToImprove  string
	MasterApproach string
	FullReflection string
	ModelUsed      string
	Error          string
}

var reflectionKeys = []string{"pivot_sentence", "tips", "what_to_improve", "master_approach"}

var reflectionTitles = map[string]string{
	"pivot_sentence":  "Pivot Sentence",
	"tips":            "Tips",
	"what_to_improve": "What to Improve",
	"master_approach": "Master Approach",
}

func formatDuration(seconds *int) string {
	if seconds == nil || *seconds <= 0 {
		return "Not recorded"
	}
	return fmt.Sprintf("%d minutes and %d seconds", *seconds/60, *seconds%60)
}

// BuildReflectionPrompt asks for a Pólya-style review of one attempt as a
// flat JSON object with the four reflection keys.
func BuildReflectionPrompt(in ReflectionInput) string {
	var b strings.Builder

	outcome := "UNSOLVED"
	if in.Solved {
		outcome = "SOLVED"
	}

	b.WriteString("Analyze this competitive programming attempt using Pólya's heuristics.\n\n")
	fmt.Fprintf(&b, "**Problem**: %s | %s | Difficulty: %d/100\n", in.ProblemName, utils.HumanizeTopic(in.Topic), in.Difficulty)
	if in.ProblemURL != "" {
		fmt.Fprintf(&b, "**URL**: %s\n", in.ProblemURL)
	}
	fmt.Fprintf(&b, "**Result**: %s | Time: %s | User Rating: %d/100\n", outcome, formatDuration(in.TimeTakenSeconds), in.UserRating)

	if in.UserApproach != "" {
		fmt.Fprintf(&b, "\n## User's Approach During Contest:\n%s\n", in.UserApproach)
	}
	switch {
	case in.EditorialText != "":
		fmt.Fprintf(&b, "\n## Editorial/Solution Provided:\n%s\n", in.EditorialText)
	case in.EditorialURL != "":
		fmt.Fprintf(&b, "\n## Editorial URL: %s\n(Consider the typical solution approach for this type of problem)\n", in.EditorialURL)
	}

	b.WriteString("\n**Pólya Heuristics to Consider**: Understanding, Edge Cases, Invariants/Monovariants, " +
		"Reformulation, Working Backward, Simpler Related Problem, Symmetry, Constraints Analysis, " +
		"Greedy/DP Structure, Key Insight, Future Heuristic.\n\n")
	b.WriteString("Respond with ONLY valid JSON (no markdown). All strings on ONE LINE, use \\n for breaks, escape special chars.\n\n")

	improve := "What to practice recognizing?"
	master := ""
	if in.UserApproach != "" {
		improve = "How did the user's approach diverge from the editorial?"
		master = " Compare to the user's approach."
	}
	fmt.Fprintf(&b, `{
    "pivot_sentence": "Key Pólya insight that unlocks this problem, framed as a reusable heuristic.",
    "tips": "3-5 tips referencing Pólya heuristics (e.g. 'Constraints: N<=10^5 suggests O(n log n)'). Use \\n between tips.",
    "what_to_improve": "Which heuristics were missed? %s Use \\n for breaks.",
    "master_approach": "Expert approach: (1) Restate problem (2) Which heuristics and why (3) Key steps (4) Patterns to remember.%s Use \\n for breaks."
}`, improve, master)

	return b.String()
}

var (
	jsonStringPattern   = regexp.MustCompile(`(?s)"(?:[^"\\]|\\.)*"`)
	otherControlPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	anyControlPattern   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	nextKeyPattern      = regexp.MustCompile(`,\s*"(?:pivot_sentence|tips|what_to_improve|master_approach)"`)
	closingBracePattern = regexp.MustCompile(`\}\s*$`)

	quotedValuePatterns = make(map[string]*regexp.Regexp, len(reflectionKeys))
	keyStartPatterns    = make(map[string]*regexp.Regexp, len(reflectionKeys))
)

func init() {
	for _, key := range reflectionKeys {
		quotedValuePatterns[key] = regexp.MustCompile(`(?is)"` + key + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
		keyStartPatterns[key] = regexp.MustCompile(`(?i)"` + key + `"\s*:\s*`)
	}
}

// sanitizeJSONStrings escapes raw control characters inside JSON string
// literals, which models often emit as literal newlines.
func sanitizeJSONStrings(content string) string {
	return jsonStringPattern.ReplaceAllStringFunc(content, func(s string) string {
		inner := s[1 : len(s)-1]
		inner = strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(inner)
		inner = otherControlPattern.ReplaceAllStringFunc(inner, func(c string) string {
			return fmt.Sprintf(`\u%04x`, c[0])
		})
		return `"` + inner + `"`
	})
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// toMarkdown renders a JSON value; lists become bullet lines.
func toMarkdown(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		lines := make([]string, 0, len(val))
		for _, item := range val {
			lines = append(lines, "- "+toMarkdown(item))
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprint(val)
	}
}

func fullMarkdown(sections map[string]string) string {
	parts := make([]string, 0, len(reflectionKeys))
	for _, key := range reflectionKeys {
		if sections[key] != "" {
			parts = append(parts, "## "+reflectionTitles[key]+"\n\n"+sections[key])
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func outputFromSections(sections map[string]string, model string) ReflectionOutput {
	return ReflectionOutput{
		PivotSentence:  sections["pivot_sentence"],
		Tips:           sections["tips"],
		WhatToImprove:  sections["what_to_improve"],
		MasterApproach: sections["master_approach"],
		FullReflection: fullMarkdown(sections),
		ModelUsed:      model,
	}
}

func decodeSections(content string) (map[string]string, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, err
	}
	sections := make(map[string]string, len(reflectionKeys))
	for _, key := range reflectionKeys {
		sections[key] = strings.TrimSpace(toMarkdown(data[key]))
	}
	return sections, nil
}

var unescaper = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`)

// extractSections pulls values for the known keys out of malformed JSON.
func extractSections(content string) map[string]string {
	sections := make(map[string]string)
	for _, key := range reflectionKeys {
		if m := quotedValuePatterns[key].FindStringSubmatch(content); m != nil {
			sections[key] = strings.TrimSpace(unescaper.Replace(m[1]))
			continue
		}
		loc := keyStartPatterns[key].FindStringIndex(content)
		if loc == nil {
			continue
		}
		rest := content[loc[1]:]
		end := len(rest)
		for _, p := range []*regexp.Regexp{nextKeyPattern, closingBracePattern} {
			if m := p.FindStringIndex(rest); m != nil && m[0] < end {
				end = m[0]
			}
		}
		value := strings.TrimSpace(rest[:end])
		value = strings.TrimSpace(strings.Trim(strings.Trim(value, `"`), ","))
		if value != "" {
			sections[key] = unescaper.Replace(value)
		}
	}
	return sections
}

// ParseReflection turns a raw completion into a ReflectionOutput. It tries
// strict JSON, then JSON with every control character blanked, then per-key
// extraction; when all fail the raw text is kept with an error set.
func ParseReflection(content, model string) ReflectionOutput {
	content = stripCodeFence(content)

	sections, err := decodeSections(sanitizeJSONStrings(content))
	if err == nil {
		return outputFromSections(sections, model)
	}
	parseErr := err

	aggressive := sanitizeJSONStrings(anyControlPattern.ReplaceAllString(content, " "))
	if sections, err := decodeSections(aggressive); err == nil {
		return outputFromSections(sections, model)
	}

	if sections := extractSections(content); len(sections) > 0 {
		out := outputFromSections(sections, model)
		out.FullReflection = "*Note: Response was partially parsed.*\n\n" + out.FullReflection
		return out
	}

	raw := content
	if raw == "" {
		raw = "No response received."
	}
	pivot := raw
	if r := []rune(pivot); len(r) > 500 {
		pivot = string(r[:500])
	}
	return ReflectionOutput{
		PivotSentence:  pivot,
		FullReflection: "## Raw Response\n\n*Note: The response could not be parsed as structured data.*\n\n" + raw,
		ModelUsed:      model,
		Error:          "Failed to parse response: " + parseErr.Error(),
	}
}
