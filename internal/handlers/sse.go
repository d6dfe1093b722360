package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"shoppersense/internal/models"
	"shoppersense/internal/services"
)

const maxBundleRows = 10

var kpiCardsTemplate = template.Must(template.New("kpiCards").Parse(`
<div id="kpi-content" class="kpi-grid">
<div class="kpi-card"><span class="kpi-label">Total Revenue</span><strong>${{.TotalRevenue.StringFixed 2}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Orders</span><strong>{{.TotalOrders}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Customers</span><strong>{{.TotalCustomers}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Avg Order Value</span><strong>${{.AOV.StringFixed 2}}</strong></div>
<div class="kpi-card"><span class="kpi-label">Repeat Purchase Rate</span><strong>{{printf "%.1f" .RepeatPurchaseRate}}%</strong></div>
<div class="kpi-card"><span class="kpi-label">Retention</span><strong>{{printf "%.1f" .CustomerRetentionRate}}%</strong></div>
</div>`))

var bundleTableTemplate = template.Must(template.New("bundleTable").Parse(`
<div id="affinity-content">
<table class="modern-table">
<thead><tr><th>Bundle</th><th>Orders</th><th>Support</th><th>Confidence</th><th>Lift</th><th>Strength</th></tr></thead>
<tbody>
{{range .Bundles}}<tr>
<td>{{.Name}}</td>
<td>{{.Count}}</td>
<td>{{printf "%.2f" .Support}}</td>
<td>{{printf "%.2f" .Confidence}}</td>
<td>{{printf "%.2f" .Lift}}</td>
<td><div class="strength-bar" style="width: {{.Strength}}%"></div></td>
</tr>{{else}}<tr><td colspan="6">No bundles found for the current filters</td></tr>{{end}}
</tbody>
</table>
<p class="table-note">{{.TotalOrders}} orders analysed</p>
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func (h *SSEHandlers) renderKPICards(kpis models.KPIs) (string, error) {
	var buf strings.Builder
	err := kpiCardsTemplate.Execute(&buf, kpis)
	return buf.String(), err
}

func (h *SSEHandlers) renderBundleTable(a models.Affinity) (string, error) {
	bundles := a.TopBundles
	if len(bundles) > maxBundleRows {
		bundles = bundles[:maxBundleRows]
	}

	var buf strings.Builder
	err := bundleTableTemplate.Execute(&buf, struct {
		Bundles     []models.Bundle
		TotalOrders int
	}{bundles, a.TotalOrders})
	return buf.String(), err
}

// stream carries one datastar connection and logs the first failed write.
type stream struct {
	sse    *datastar.ServerSentEventGenerator
	logger *slog.Logger
	r      *http.Request
	err    error
}

func (h *SSEHandlers) open(w http.ResponseWriter, r *http.Request) *stream {
	return &stream{sse: datastar.NewSSE(w, r), logger: h.logger, r: r}
}

func (s *stream) elements(html string) {
	if s.err != nil {
		return
	}
	if s.err = s.sse.PatchElements(html); s.err != nil {
		s.logger.WarnContext(s.r.Context(), "patch elements failed", "path", s.r.URL.Path, "error", s.err)
	}
}

func (s *stream) signals(v map[string]any) {
	if s.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.err = err
		s.logger.ErrorContext(s.r.Context(), "marshal signals", "path", s.r.URL.Path, "error", err)
		return
	}
	if s.err = s.sse.PatchSignals(data); s.err != nil {
		s.logger.WarnContext(s.r.Context(), "patch signals failed", "path", s.r.URL.Path, "error", s.err)
	}
}

// failed reports an error inline, since the response is already an event
// stream and cannot carry the JSON envelope.
func (s *stream) failed(target string, err error) {
	s.logger.ErrorContext(s.r.Context(), "sse view failed", "path", s.r.URL.Path, "error", err)
	s.elements(`<div id="` + target + `" class="error">` + template.HTMLEscapeString(err.Error()) + `</div>`)
}

func (h *SSEHandlers) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	s := h.open(w, r)

	c, err := criteria(r)
	if err != nil {
		s.failed("kpi-content", err)
		return
	}
	kpis, err := h.analytics.KPIs(r.Context(), c)
	if err != nil {
		s.failed("kpi-content", err)
		return
	}

	html, err := h.renderKPICards(kpis)
	if err != nil {
		s.failed("kpi-content", err)
		return
	}
	s.elements(html)
	s.signals(map[string]any{"kpis": kpis})
}

func (h *SSEHandlers) HandleAffinity(w http.ResponseWriter, r *http.Request) {
	s := h.open(w, r)

	c, err := criteria(r)
	if err != nil {
		s.failed("affinity-content", err)
		return
	}
	aff, err := h.analytics.Affinity(r.Context(), c)
	if err != nil {
		s.failed("affinity-content", err)
		return
	}

	html, err := h.renderBundleTable(aff)
	if err != nil {
		s.failed("affinity-content", err)
		return
	}
	s.elements(html)
	s.signals(map[string]any{"categoryAffinity": aff.CategoryAffinity})
}

func (h *SSEHandlers) HandleTrends(w http.ResponseWriter, r *http.Request) {
	s := h.open(w, r)

	c, err := criteria(r)
	if err != nil {
		s.failed("trends-content", err)
		return
	}
	trends, err := h.analytics.Trends(r.Context(), c)
	if err != nil {
		s.failed("trends-content", err)
		return
	}

	s.signals(map[string]any{"trendsData": trends})
	s.elements(`<div id="trends-content">Trend charts updated</div>`)
}

// HandleRefreshAll reads a single snapshot and pushes every panel.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	s := h.open(w, r)

	c, err := criteria(r)
	if err != nil {
		s.failed("dashboard-status", err)
		return
	}
	d, err := h.analytics.Dashboard(r.Context(), c)
	if err != nil {
		s.failed("dashboard-status", err)
		return
	}

	kpiHTML, err := h.renderKPICards(d.KPIs)
	if err != nil {
		s.failed("kpi-content", err)
		return
	}
	s.elements(kpiHTML)

	bundleHTML, err := h.renderBundleTable(d.Affinity)
	if err != nil {
		s.failed("affinity-content", err)
		return
	}
	s.elements(bundleHTML)

	s.signals(map[string]any{
		"kpis":             d.KPIs,
		"segmentation":     d.Segmentation,
		"categoryAffinity": d.Affinity.CategoryAffinity,
		"trendsData":       d.Trends,
		"recommendations":  d.Recommendations,
		"generatedAt":      d.GeneratedAt,
	})
}
