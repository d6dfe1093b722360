package models

type InsightMetrics struct {
	RevenueImpact float64 `json:"revenueImpact"`
	Growth        float64 `json:"growth"`
	SegmentSize   float64 `json:"segmentSize"`
	Duration      string  `json:"duration"`
}

type InsightImpact struct {
	RevenueUplift        float64 `json:"revenueUplift"`
	RetentionImprovement float64 `json:"retentionImprovement"`
	CrossSellImpact      float64 `json:"crossSellImpact"`
}

type ImplementationGuide struct {
	Explanation      string         `json:"explanation"`
	Metrics          InsightMetrics `json:"metrics"`
	Actions          []string       `json:"actions"`
	Impact           InsightImpact  `json:"impact"`
	VisualData       []float64      `json:"visualData,omitempty"`
	SuggestedFilters map[string]any `json:"suggestedFilters,omitempty"`
}

// Insight types are sales, behavior, revenue or alert; confidence is Low,
// Medium or High.
type Insight struct {
	Type                string              `json:"type"`
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	Confidence          string              `json:"confidence"`
	ImplementationGuide ImplementationGuide `json:"implementationGuide"`
}
