package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

type Section struct {
	ID    string
	Title string
	Feed  string
}

var sections = []Section{
	{ID: "kpi-content", Title: "Key Metrics", Feed: "/sse/kpis"},
	{ID: "affinity-content", Title: "Frequently Bought Together", Feed: "/sse/affinity"},
	{ID: "trends-content", Title: "Sales Trends", Feed: "/sse/trends"},
}

// Dashboard renders the single-page shell. Panels start empty and are filled
// by the datastar SSE feeds once the page loads.
func Dashboard() templ.Component {
	return Page("ShopperSense Analytics", sections)
}

func Page(title string, panels []Section) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder

		sb.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		sb.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		sb.WriteString(`<title>` + templ.EscapeString(title) + `</title>`)
		sb.WriteString(`<script type="module" src="` + datastarScript + `"></script>`)
		sb.WriteString(`</head><body data-signals="{kpis: {}, segmentation: {}, categoryAffinity: [], trendsData: {}, recommendations: {}, generatedAt: ''}">`)

		sb.WriteString(`<header><h1>` + templ.EscapeString(title) + `</h1>`)
		sb.WriteString(`<button data-on-click="@get('/sse/refresh-all')">Refresh</button>`)
		sb.WriteString(`<span id="dashboard-status" data-text="$generatedAt"></span></header><main>`)

		for _, p := range panels {
			sb.WriteString(`<section class="panel"><h2>` + templ.EscapeString(p.Title) + `</h2>`)
			sb.WriteString(`<div id="` + templ.EscapeString(p.ID) + `" data-on-load="@get('` + templ.EscapeString(p.Feed) + `')">Loading...</div></section>`)
		}

		sb.WriteString(`</main></body></html>`)

		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
