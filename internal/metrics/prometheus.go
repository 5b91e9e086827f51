package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	eventsMetric     = "skywatch_relay_events_total"
	modelReadyMetric = "skywatch_relay_model_ready"
)

var labelEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")

// PrometheusHandler exposes the counters in Prometheus' text format as one
// metric with an `event` label. When modelReady is non-nil a 0/1 gauge
// reports whether the frame predictor has a configured model.
func PrometheusHandler(m *Metrics, modelReady func() bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintf(w, "# HELP %s Relay and predictor event counters.\n", eventsMetric)
		_, _ = fmt.Fprintf(w, "# TYPE %s counter\n", eventsMetric)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "%s{event=\"%s\"} %d\n", eventsMetric, labelEscaper.Replace(k), snap[k])
		}

		if modelReady != nil {
			ready := 0
			if modelReady() {
				ready = 1
			}
			_, _ = fmt.Fprintf(w, "# HELP %s Whether the frame predictor has a configured model.\n", modelReadyMetric)
			_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", modelReadyMetric)
			_, _ = fmt.Fprintf(w, "%s %d\n", modelReadyMetric, ready)
		}
	})
}
