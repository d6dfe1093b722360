package insights

import (
	"encoding/json"
	"fmt"
	"strings"

	"shoppersense/internal/models"
)

// ParseInsights extracts the outermost JSON array from a model response.
// Surrounding prose and markdown fences are ignored; records without a type
// or title are dropped.
func ParseInsights(text string) ([]models.Insight, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start, end := strings.IndexByte(text, '['), strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no json array (response: %.200s)", ErrNoInsights, text)
	}

	var raw []models.Insight
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode insights: %w", err)
	}

	out := usable(raw)
	if len(out) == 0 {
		return nil, ErrNoInsights
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
