package webui

import (
	_ "embed"
	"strings"
)

// DashboardPlaceholder is replaced by the dashboard URL when the page is
// rendered.
const DashboardPlaceholder = "__DASHBOARD_URL__"

//go:embed index.html
var indexHTML string

// IndexHTML returns the status page with dashboardURL filled in.
func IndexHTML(dashboardURL string) []byte {
	return []byte(strings.ReplaceAll(indexHTML, DashboardPlaceholder, dashboardURL))
}
