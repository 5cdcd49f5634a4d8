package service

import (
	"context"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Abuzaid-01/Float-Chat/internal/datasource"
	"github.com/Abuzaid-01/Float-Chat/internal/toolplan"
	"github.com/Abuzaid-01/Float-Chat/internal/tools"
)

// Synthesizer turns an answer into text for the user.
type Synthesizer interface {
	Synthesize(ctx context.Context, ans *Answer) (string, error)
}

// SummarySynthesizer renders a deterministic plain-text summary: the
// fetched data, one line per notable tool finding, then the tool status
// list.
type SummarySynthesizer struct{}

var printer = message.NewPrinter(language.English)

func (SummarySynthesizer) Synthesize(_ context.Context, ans *Answer) (string, error) {
	var b strings.Builder
	p := func(format string, args ...any) { b.WriteString(printer.Sprintf(format, args...)) }

	p("Question: %s\n", ans.Question)
	p("Region: %s\n", ans.Analysis.Region.Name)

	if ans.Report != nil {
		if res, ok := ans.Report.Result(toolplan.FetchData); ok && res.Succeeded {
			if data, ok := res.Payload.(tools.FetchResult); ok {
				writeDataSummary(p, data)
			}
		}
		findings := collectFindings(ans)
		if len(findings) > 0 {
			p("\nFindings:\n")
			for _, f := range findings {
				p("- %s\n", f)
			}
		}
		p("\nTools executed:\n")
		for _, res := range ans.Report.Results {
			if res.Succeeded {
				p("✓ %s\n", res.ToolName)
			} else {
				p("✗ %s: %s\n", res.ToolName, res.ErrorMessage)
			}
		}
	}
	if ans.CompileError != "" {
		p("\nSQL not available: %s\n", ans.CompileError)
	}
	return b.String(), nil
}

func writeDataSummary(p func(string, ...any), data tools.FetchResult) {
	t := data.Table
	p("\nData summary:\n")
	p("- Records: %d", data.RowCount)
	if data.Truncated {
		p(" (truncated)")
	}
	p("\n")
	if t.Len() == 0 {
		return
	}
	p("- Columns: %s\n", strings.Join(t.Columns, ", "))
	if s := tools.Summarize(t.Floats("temperature")); s.Count > 0 {
		p("- Temperature: %.2f°C to %.2f°C (avg %.2f°C)\n", s.Min, s.Max, s.Mean)
	}
	if s := tools.Summarize(t.Floats("salinity")); s.Count > 0 {
		p("- Salinity: %.2f to %.2f PSU (avg %.2f PSU)\n", s.Min, s.Max, s.Mean)
	}
	if s := tools.Summarize(t.Floats("pressure")); s.Count > 0 {
		p("- Depth: %.1f to %.1f dbar\n", s.Min, s.Max)
	}
	if n := uniqueFloats(t); n > 0 {
		p("- Floats: %d\n", n)
	}
}

func uniqueFloats(t *datasource.Table) int {
	if !t.Has("float_id") {
		return 0
	}
	seen := make(map[string]struct{})
	for r := range t.Rows {
		if id, ok := t.String(r, "float_id"); ok {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

func collectFindings(ans *Answer) []string {
	var out []string
	for _, res := range ans.Report.Results {
		if !res.Succeeded {
			continue
		}
		switch v := res.Payload.(type) {
		case tools.ThermoclineResult:
			out = append(out, printer.Sprintf("Thermocline at %.1f dbar, gradient %.3f°C/dbar (%.2f°C at surface, %.2f°C at depth)",
				v.DepthDbar, v.Strength, v.SurfaceTemp, v.DeepTemp))
		case tools.MixedLayerResult:
			if v.Reached {
				out = append(out, printer.Sprintf("Mixed layer depth %.1f %s (ΔT %.1f°C)", v.MixedLayerDepth, v.Unit, v.Threshold))
			} else {
				out = append(out, printer.Sprintf("Mixed layer extends below the deepest level, %.1f %s", v.MixedLayerDepth, v.Unit))
			}
		case tools.WaterMassResult:
			if len(v.WaterMasses) == 0 {
				out = append(out, "No known water mass matched")
				continue
			}
			names := make([]string, len(v.WaterMasses))
			for i, wm := range v.WaterMasses {
				names[i] = printer.Sprintf("%s (%d)", wm.Name, wm.Count)
			}
			out = append(out, "Water masses: "+strings.Join(names, ", "))
		case tools.CompareResult:
			parts := make([]string, len(v.Regions))
			for i, r := range v.Regions {
				if r.Count == 0 {
					parts[i] = r.Region + " no data"
					continue
				}
				parts[i] = printer.Sprintf("%s mean %.2f (n=%d)", r.Region, r.Mean, r.Count)
			}
			line := "Comparison of " + v.Parameter + ": " + strings.Join(parts, ", ")
			if v.Difference != nil {
				line += printer.Sprintf("; difference %.2f", *v.Difference)
			}
			out = append(out, line)
		case tools.TrendResult:
			sig := "not significant"
			if v.Significant {
				sig = "significant"
			}
			out = append(out, printer.Sprintf("%s trend over %d days is %s, %.4f per week (p=%.3f, %s)",
				v.Parameter, v.Days, v.Trend, v.Slope, v.PValue, sig))
		case tools.FloatProfileResult:
			out = append(out, printer.Sprintf("Float %s: %d measurements", v.FloatID, v.Measurements))
		case tools.SimilarResult:
			out = append(out, printer.Sprintf("%d similar profiles found", len(v.Results)))
		}
	}
	return out
}
