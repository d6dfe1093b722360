package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard_Render(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Dashboard().Render(context.Background(), &sb))

	html := sb.String()
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>ShopperSense Analytics</title>")
	for _, s := range sections {
		assert.Contains(t, html, `id="`+s.ID+`"`)
		assert.Contains(t, html, s.Feed)
	}
	assert.Contains(t, html, "/sse/refresh-all")
}

func TestPage_EscapesTitle(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Page("<Shop & Co>", nil).Render(context.Background(), &sb))
	assert.Contains(t, sb.String(), "&lt;Shop &amp; Co&gt;")
}

func TestDashboard_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sb strings.Builder
	assert.ErrorIs(t, Dashboard().Render(ctx, &sb), context.Canceled)
	assert.Empty(t, sb.String())
}
