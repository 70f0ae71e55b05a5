package utils

import (
	"strings"
)

// TopicSlug turns a free-form skill name into a topic identifier,
// e.g. "Binary Search" -> "skill_binary_search".
func TopicSlug(skill string) string {
	slug := strings.ToLower(strings.TrimSpace(skill))
	slug = strings.ReplaceAll(slug, " ", "_")
	return "skill_" + slug
}

// HumanizeTopic renders a topic identifier for prompts and display,
// e.g. "graph_shortest_path" -> "Graph Shortest Path".
func HumanizeTopic(topic string) string {
	words := strings.Fields(strings.ReplaceAll(topic, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
