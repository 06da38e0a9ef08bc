// Package report renders scan reports for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"k8s-zombie-detector/pkg/detector"
	"k8s-zombie-detector/pkg/kube"
)

// Options controls the text rendering.
type Options struct {
	// Details adds per-rule scores and evidence under each finding.
	Details bool
	// Usage holds live readings keyed by ContainerRef.String(); entries are
	// printed under the matching finding.
	Usage map[string]kube.Usage
}

// JSON renders the report as an indented JSON document.
func JSON(r detector.Report) (string, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(out), nil
}

// Text renders the report in the plain listing format.
func Text(r detector.Report, opts Options) string {
	if len(r.Findings) == 0 {
		return "No zombie containers detected."
	}

	var b strings.Builder
	b.WriteString("Zombie Containers:")
	for _, f := range r.Findings {
		fmt.Fprintf(&b, "\n\n%s/%s/%s\n", f.Container.Namespace, f.Container.Pod, f.Container.Container)
		fmt.Fprintf(&b, "  Score: %.2f\n", f.Verdict.Score)
		node := f.Container.Node
		if node == "" {
			node = "N/A"
		}
		fmt.Fprintf(&b, "  Node: %s", node)

		if usage, ok := opts.Usage[f.Container.String()]; ok {
			fmt.Fprintf(&b, "\n  Live Usage: %.3f cores, %.1f MB",
				usage.CPUCores, usage.MemoryBytes/(1<<20))
		}

		if opts.Details {
			writeDetails(&b, f)
		}
	}
	return b.String()
}

func writeDetails(b *strings.Builder, f detector.Finding) {
	rules := make([]string, 0, len(f.Verdict.Rules))
	for name := range f.Verdict.Rules {
		rules = append(rules, name)
	}
	sort.Strings(rules)

	b.WriteString("\n  Rule Scores:")
	for _, name := range rules {
		fmt.Fprintf(b, "\n    %s: %.2f", name, f.Verdict.Rules[name].Score)
	}

	b.WriteString("\n  Details:")
	for _, name := range rules {
		evidence := f.Verdict.Rules[name].Evidence
		if len(evidence) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n    %s:", name)
		keys := make([]string, 0, len(evidence))
		for k := range evidence {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "\n      %s: %v", k, evidence[k])
		}
	}
}
