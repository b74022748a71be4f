package skills

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type frontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

func splitFrontMatter(content string) (front string, body string, hasFrontMatter bool, err error) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return "", normalized, false, nil
	}
	rest := normalized[len("---\n"):]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", "", false, fmt.Errorf("front matter opening delimiter found without closing delimiter")
	}
	front = rest[:idx]
	body = strings.TrimLeft(rest[idx+len("\n---"):], "\n")
	return front, body, true, nil
}

func parseFrontMatter(content string) (frontMatter, string, error) {
	front, body, has, err := splitFrontMatter(content)
	if err != nil || !has {
		return frontMatter{}, body, err
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return frontMatter{}, body, fmt.Errorf("parse front matter: %w", err)
	}
	fm.Name = strings.TrimSpace(fm.Name)
	fm.Description = strings.TrimSpace(fm.Description)
	return fm, body, nil
}

// summarize takes the first two prose lines of the body.
func summarize(body string) string {
	parts := make([]string, 0, 2)
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		trimmed = strings.TrimPrefix(trimmed, "- ")
		trimmed = strings.TrimPrefix(trimmed, "* ")
		parts = append(parts, trimmed)
		if len(parts) == 2 {
			break
		}
	}
	summary := strings.Join(parts, " ")
	if len(summary) > 260 {
		return summary[:257] + "..."
	}
	return summary
}
