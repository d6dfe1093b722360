package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// KPIs counts rows for TotalOrders, not derived customer-day orders.
type KPIs struct {
	TotalRevenue          decimal.Decimal `json:"totalRevenue"`
	TotalOrders           int             `json:"totalOrders"`
	TotalCustomers        int             `json:"totalCustomers"`
	AOV                   decimal.Decimal `json:"aov"`
	RepeatPurchaseRate    float64         `json:"repeatPurchaseRate"`
	CustomerRetentionRate float64         `json:"customerRetentionRate"`
}

type SegmentCounts struct {
	HighValue int `json:"highValue"`
	Frequent  int `json:"frequent"`
	AtRisk    int `json:"atRisk"`
	New       int `json:"new"`
	Regular   int `json:"regular"`
}

type CustomerSummary struct {
	ID         string          `json:"id"`
	TotalSpend decimal.Decimal `json:"totalSpend"`
	Count      int             `json:"count"`
	FirstDate  time.Time       `json:"firstDate"`
	LastDate   time.Time       `json:"lastDate"`
}

type Demographics struct {
	Gender map[string]int `json:"gender"`
	Age    map[string]int `json:"age"`
}

type Segmentation struct {
	Segments           SegmentCounts     `json:"segments"`
	HighValueCustomers []CustomerSummary `json:"highValueCustomers"`
	Demographics       Demographics      `json:"demographics"`
}

type Bundle struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Support    float64 `json:"support"`
	Confidence float64 `json:"confidence"`
	Lift       float64 `json:"lift"`
	Strength   int     `json:"strength"`
}

type CategoryPair struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	CatA    string  `json:"catA"`
	CatB    string  `json:"catB"`
	Support float64 `json:"support"`
}

// Affinity.TotalOrders counts customer-day orders, unlike KPIs.TotalOrders.
type Affinity struct {
	TopBundles       []Bundle       `json:"topBundles"`
	CategoryAffinity []CategoryPair `json:"categoryAffinity"`
	TotalOrders      int            `json:"totalOrders"`
}

type DailySales struct {
	Date          string          `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	MovingAverage decimal.Decimal `json:"movingAverage"`
}

type MonthlyTrend struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	Growth  float64         `json:"growth"`
}

type CategoryPerformance struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
	Orders   int             `json:"orders"`
	Growth   float64         `json:"growth"`
}

type LocationInsight struct {
	Location string          `json:"location"`
	Revenue  decimal.Decimal `json:"revenue"`
	Growth   float64         `json:"growth"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type HourCount struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

type Trends struct {
	DailySales          []DailySales          `json:"dailySales"`
	MonthlyTrends       []MonthlyTrend        `json:"monthlyTrends"`
	CategoryPerformance []CategoryPerformance `json:"categoryPerformance"`
	LocationInsights    []LocationInsight     `json:"locationInsights"`
	PaymentInsights     map[string]int        `json:"paymentInsights"`
	PeakDays            []DayCount            `json:"peakDays"`
	PeakHours           []HourCount           `json:"peakHours"`
}

type Recommendation struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Reason   string `json:"reason"`
}

type Recommendations struct {
	CrossSell []Recommendation `json:"crossSell"`
	Upsell    []Recommendation `json:"upsell"`
	Segment   []Recommendation `json:"segment"`
}

// Dashboard bundles every view computed from one filtered snapshot.
type Dashboard struct {
	KPIs            KPIs            `json:"kpis"`
	Segmentation    Segmentation    `json:"segmentation"`
	Affinity        Affinity        `json:"affinity"`
	Trends          Trends          `json:"trends"`
	Recommendations Recommendations `json:"recommendations"`
	GeneratedAt     time.Time       `json:"generatedAt"`
}
