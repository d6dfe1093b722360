package insights

import (
	"encoding/json"
	"strings"
)

const promptRules = `Insights should cover:
1. SALES: fastest growing category, revenue momentum, or declining categories.
2. CUSTOMER BEHAVIOR: loyalty trends, dominant demographic segment, or repeat purchase patterns.
3. REVENUE OPTIMIZATION: cross-sell opportunities using real categories, upsell, or high-value customer contribution.
4. ALERTS: unusual sales spikes, sudden drops, or emerging regional growth.

Every insight must be grounded in the data summary.

Rules:
- Return ONLY a JSON array of objects.
- Each object MUST have:
  - "type": "sales" | "behavior" | "revenue" | "alert"
  - "title": string, 3-6 words, specific to the finding
  - "description": string, a concise summary of the finding
  - "confidence": "Low" | "Medium" | "High"
  - "implementationGuide": {
      "explanation": string using real data points from the summary,
      "metrics": {"revenueImpact": number, "growth": number (percent), "segmentSize": number, "duration": string such as "Last 30 days"},
      "actions": string[] with 3 actionable steps,
      "impact": {"revenueUplift": number (percent), "retentionImprovement": number (percent), "crossSellImpact": number (percent)},
      "visualData": number[] with exactly 8 points describing a related trend,
      "suggestedFilters": object such as {"category": "Clothing"} or {"location": "Maine"}
    }

Keep every number in implementationGuide realistic relative to totalRevenue and totalTransactions.
Do not include any text before or after the JSON array.`

// BuildPrompt renders the generation request for a summary. Leaders are
// encoded as [name, value] pairs.
func BuildPrompt(summary Summary) string {
	data, err := json.Marshal(summary)
	if err != nil {
		data = []byte("{}")
	}

	var sb strings.Builder
	sb.WriteString("Analyze this ShopperSense transaction data summary and generate 6 high-impact, natural language business insights.\n")
	sb.WriteString("Data Summary: ")
	sb.Write(data)
	sb.WriteString("\n\n")
	sb.WriteString(promptRules)
	return sb.String()
}
