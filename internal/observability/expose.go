package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Expose renders the current snapshot in the Prometheus text exposition
// format (https://prometheus.io/docs/instrumenting/exposition_formats/).
// No client library is used: the format is a stable, simple text grammar
// (metric name, labels, value, one line per sample) and no repo in this
// codebase's retrieval pack imports prometheus/client_golang — pulling it
// in for two counters and three gauges would add a dependency the corpus
// never demonstrates.
func (t *Tracker) Expose(w io.Writer) error {
	snap := t.Snapshot()

	names := make([]string, 0, len(snap.Operations))
	for name := range snap.Operations {
		names = append(names, name)
	}

	sort.Strings(names)

	if err := writeHelp(w, "censusql_operation_success_total", "counter", "Successful invocations by operation."); err != nil {
		return err
	}

	for _, name := range names {
		if err := writeSample(w, "censusql_operation_success_total", name, float64(snap.Operations[name].Successes)); err != nil {
			return err
		}
	}

	if err := writeHelp(w, "censusql_operation_failure_total", "counter", "Failed invocations by operation."); err != nil {
		return err
	}

	for _, name := range names {
		if err := writeSample(w, "censusql_operation_failure_total", name, float64(snap.Operations[name].Failures)); err != nil {
			return err
		}
	}

	if err := writeHelp(w, "censusql_operation_latency_avg_seconds", "gauge", "Rolling average latency by operation."); err != nil {
		return err
	}

	for _, name := range names {
		seconds := snap.Operations[name].AvgLatency.Seconds()
		if err := writeSample(w, "censusql_operation_latency_avg_seconds", name, seconds); err != nil {
			return err
		}
	}

	if err := writeHelp(w, "censusql_operation_latency_max_seconds", "gauge", "Maximum observed latency in the retained sample window."); err != nil {
		return err
	}

	for _, name := range names {
		seconds := snap.Operations[name].MaxLatency.Seconds()
		if err := writeSample(w, "censusql_operation_latency_max_seconds", name, seconds); err != nil {
			return err
		}
	}

	if err := writeHelp(w, "censusql_dependency_up", "gauge", "1 if the dependency's breaker is closed, 0 otherwise."); err != nil {
		return err
	}

	for _, dep := range snap.Dependencies {
		value := 0.0
		if dep.State == "closed" {
			value = 1.0
		}

		if err := writeLabeledSample(w, "censusql_dependency_up", "dependency", dep.Name, value); err != nil {
			return err
		}
	}

	return nil
}

func writeHelp(w io.Writer, metric, metricType, help string) error {
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", metric, help, metric, metricType)

	return err
}

func writeSample(w io.Writer, metric, operation string, value float64) error {
	return writeLabeledSample(w, metric, "operation", operation, value)
}

func writeLabeledSample(w io.Writer, metric, labelName, labelValue string, value float64) error {
	_, err := fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", metric, labelName, escapeLabel(labelValue), formatFloat(value))

	return err
}

func escapeLabel(label string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

	return replacer.Replace(label)
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
