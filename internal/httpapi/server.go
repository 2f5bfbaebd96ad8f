package httpapi

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"

	"magicformula/internal/chart"
	"magicformula/internal/dashboard"
)

// DashboardServer serves one finished run. All responses are built from
// data fixed at construction, so handlers are safe for concurrent use.
type DashboardServer struct {
	view   *dashboard.View
	images *chart.Images
	log    *slog.Logger

	summary    SummaryJSON
	comparison ComparisonJSON
	heatmaps   map[string]HeatmapJSON
}

// Heatmap series names accepted by the heatmap routes.
const (
	SeriesStrategy  = "strategy"
	SeriesBenchmark = "benchmark"
)

// NewDashboardServer creates a server for a view and its rendered images.
func NewDashboardServer(view *dashboard.View, images *chart.Images, log *slog.Logger) *DashboardServer {
	if log == nil {
		log = slog.Default()
	}
	return &DashboardServer{
		view:       view,
		images:     images,
		log:        log,
		summary:    toSummaryJSON(view),
		comparison: toComparisonJSON(view),
		heatmaps: map[string]HeatmapJSON{
			SeriesStrategy:  toHeatmapJSON(view.StrategyHeatmap),
			SeriesBenchmark: toHeatmapJSON(view.BenchmarkHeatmap),
		},
	}
}

// RegisterRoutes registers all routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/comparison", s.handleComparison)
	mux.HandleFunc("GET /api/holdings", s.handleHoldings)
	mux.HandleFunc("GET /api/holdings/{period}", s.handleHoldingsPeriod)
	mux.HandleFunc("GET /api/heatmap/{series}", s.handleHeatmap)
	mux.HandleFunc("GET /chart/cumulative.png", s.handleCumulativePNG)
	mux.HandleFunc("GET /chart/heatmap/{file}", s.handleHeatmapPNG)
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writePNG(w http.ResponseWriter, b []byte) {
	if len(b) == 0 {
		writeError(w, http.StatusNotFound, "chart not rendered")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=300")
	w.Write(b)
}

// ---------------------------------------------------------------------------
// JSON handlers
// ---------------------------------------------------------------------------

func (s *DashboardServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "run": s.view.RunID})
}

func (s *DashboardServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.summary)
}

func (s *DashboardServer) handleComparison(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.comparison)
}

func (s *DashboardServer) handleHoldings(w http.ResponseWriter, r *http.Request) {
	out := make([]HoldingsJSON, 0, len(s.view.Holdings))
	for _, h := range s.view.Holdings {
		out = append(out, toHoldingsJSON(h))
	}
	writeJSON(w, out)
}

func (s *DashboardServer) handleHoldingsPeriod(w http.ResponseWriter, r *http.Request) {
	period := r.PathValue("period")
	h, ok := dashboard.FindHoldings(s.view.Holdings, period)
	if !ok {
		writeError(w, http.StatusNotFound, "no holdings for period "+period)
		return
	}
	writeJSON(w, toHoldingsJSON(h))
}

func (s *DashboardServer) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	series := r.PathValue("series")
	h, ok := s.heatmaps[series]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown series "+series)
		return
	}
	writeJSON(w, h)
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

func (s *DashboardServer) handleCumulativePNG(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		writeError(w, http.StatusNotFound, "chart not rendered")
		return
	}
	writePNG(w, s.images.Cumulative)
}

func (s *DashboardServer) handleHeatmapPNG(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		writeError(w, http.StatusNotFound, "chart not rendered")
		return
	}
	switch r.PathValue("file") {
	case SeriesStrategy + ".png":
		writePNG(w, s.images.StrategyHeatmap)
	case SeriesBenchmark + ".png":
		writePNG(w, s.images.BenchmarkHeatmap)
	default:
		writeError(w, http.StatusNotFound, "unknown heatmap "+r.PathValue("file"))
	}
}

// ---------------------------------------------------------------------------
// HTML page
// ---------------------------------------------------------------------------

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"pct": dashboard.FormatPct,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.StrategyName}} vs {{.BenchmarkName}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; margin-bottom: 1.5rem; }
td, th { padding: .25rem .75rem; border-bottom: 1px solid #ddd; text-align: right; }
th:first-child, td:first-child { text-align: left; }
img { max-width: 100%; display: block; margin-bottom: 1.5rem; }
details { margin: .25rem 0; }
</style>
</head>
<body>
<h1>{{.StrategyName}} vs {{.BenchmarkName}}</h1>
<p>Run {{.RunID}} generated {{.Generated.Format "2006-01-02 15:04 MST"}}</p>

<table>
<tr><th></th><th>{{.StrategyName}}</th><th>{{.BenchmarkName}}</th></tr>
{{range .Summary}}<tr><td>{{.Label}}</td><td>{{.Strategy}}</td><td>{{.Benchmark}}</td></tr>
{{end}}</table>

<img src="chart/cumulative.png" alt="Cumulative return">
<h2>{{.StrategyName}} monthly returns</h2>
<img src="chart/heatmap/strategy.png" alt="{{.StrategyName}} heatmap">
<h2>{{.BenchmarkName}} monthly returns</h2>
<img src="chart/heatmap/benchmark.png" alt="{{.BenchmarkName}} heatmap">

<h2>Portfolio holdings</h2>
{{range .Holdings}}<details>
<summary>Portfolio for {{.Label}}</summary>
<ol>{{range .Tickers}}<li>{{.}}</li>{{end}}</ol>
</details>
{{else}}<p>No holdings.</p>
{{end}}
<h2>Comparison</h2>
<table>
<tr><th>Date</th><th>{{.StrategyName}}</th><th>{{.BenchmarkName}}</th></tr>
{{range .Periods}}<tr><td>{{.Key}}</td><td>{{pct .StrategyCumulative}}</td><td>{{pct .BenchmarkCumulative}}</td></tr>
{{end}}</table>
</body>
</html>
`))

func (s *DashboardServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, s.view); err != nil {
		s.log.Error("rendering index", "error", err)
	}
}
