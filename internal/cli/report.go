package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"shoppersense/internal/analytics"
	"shoppersense/internal/app"
	"shoppersense/internal/models"
	"shoppersense/internal/services"
)

// FilterOptions mirrors the HTTP filter query parameters.
type FilterOptions struct {
	Category  string
	Location  string
	Gender    string
	StartDate string
	EndDate   string
	AgeGroup  string
}

func (f FilterOptions) criteria() (models.FilterCriteria, error) {
	q := url.Values{}
	for key, v := range map[string]string{
		"category":  f.Category,
		"location":  f.Location,
		"gender":    f.Gender,
		"startDate": f.StartDate,
		"endDate":   f.EndDate,
		"ageGroup":  f.AgeGroup,
	} {
		if v != "" {
			q.Set(key, v)
		}
	}
	return analytics.ParseCriteria(q)
}

type report struct {
	data any
	text func(io.Writer) error
}

type reportFunc func(ctx context.Context, a *services.Analytics, c models.FilterCriteria) (report, error)

func viewReport[T any](compute func(*services.Analytics, context.Context, models.FilterCriteria) (T, error), text func(io.Writer, T) error) reportFunc {
	return func(ctx context.Context, a *services.Analytics, c models.FilterCriteria) (report, error) {
		v, err := compute(a, ctx, c)
		if err != nil {
			return report{}, err
		}
		return report{data: v, text: func(w io.Writer) error { return text(w, v) }}, nil
	}
}

var reports = map[string]reportFunc{
	"kpis":            viewReport((*services.Analytics).KPIs, writeKPIs),
	"segments":        viewReport((*services.Analytics).Segments, writeSegments),
	"affinity":        viewReport((*services.Analytics).Affinity, writeAffinity),
	"trends":          viewReport((*services.Analytics).Trends, writeTrends),
	"recommendations": viewReport((*services.Analytics).Recommendations, writeRecommendations),
	"insights":        viewReport((*services.Analytics).Insights, writeInsights),
	"dashboard":       viewReport((*services.Analytics).Dashboard, writeDashboard),
}

// ReportViews lists the view names accepted by the report command.
func ReportViews() []string {
	return slices.Sorted(maps.Keys(reports))
}

func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	var filters FilterOptions

	cmd := &cobra.Command{
		Use:   "report <view>",
		Short: "Compute an analytics view",
		Long: fmt.Sprintf(`Compute one analytics view over the stored transactions.

Views: %s

Filters match the HTTP API: dates are YYYY-MM-DD or RFC 3339 in UTC, and
age groups are ranges like 25-34 or 55- (55 and over).`, strings.Join(ReportViews(), ", ")),
		Args:          cobra.ExactArgs(1),
		ValidArgs:     ReportViews(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, rootOpts, args[0], filters)
		},
	}

	cmd.Flags().StringVar(&filters.Category, "category", "", "product category")
	cmd.Flags().StringVar(&filters.Location, "location", "", "customer location")
	cmd.Flags().StringVar(&filters.Gender, "gender", "", "customer gender")
	cmd.Flags().StringVar(&filters.StartDate, "start-date", "", "first purchase date included")
	cmd.Flags().StringVar(&filters.EndDate, "end-date", "", "last purchase date included")
	cmd.Flags().StringVar(&filters.AgeGroup, "age-group", "", "customer age range")

	return cmd
}

func runReport(cmd *cobra.Command, opts *RootOptions, view string, filters FilterOptions) error {
	_, ok := reports[view]
	if !ok {
		return fmt.Errorf("unknown view %q: must be one of %s", view, strings.Join(ReportViews(), ", "))
	}
	criteria, err := filters.criteria()
	if err != nil {
		return err
	}

	cfg, err := opts.config()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, repo, err := app.NewAnalytics(ctx, cfg, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer repo.Close()

	return writeReport(ctx, cmd.OutOrStdout(), opts.Format, a, view, criteria)
}

func writeReport(ctx context.Context, w io.Writer, format string, a *services.Analytics, view string, c models.FilterCriteria) error {
	r, err := reports[view](ctx, a, c)
	if err != nil {
		return fmt.Errorf("compute %s: %w", view, err)
	}
	out := &OutputFormatter{Format: format, Writer: w}
	return out.Success(r.data, r.text)
}
