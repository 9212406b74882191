package sink

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/tracebound/reagent/trace"
)

// reportTemplate renders a run as a single self-contained HTML page:
// header metrics, a timeline of step cards, and a client-side text
// filter.
var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"seconds": func(d interface{ Seconds() float64 }) string {
		return fmt.Sprintf("%.2fs", d.Seconds())
	},
	"orDash": func(s string) string {
		if s == "" {
			return "—"
		}
		return s
	},
}).Parse(`<!doctype html><html><head><meta charset="utf-8"><title>Agent Trace</title>
<style>
body{font-family:system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica,Arial,sans-serif;padding:16px}
.step{border:1px solid #e5e5e5;border-radius:12px;padding:12px;margin:10px 0;box-shadow:0 1px 3px rgba(0,0,0,.05)}
.badge{display:inline-block;background:#f6f6f6;border-radius:8px;padding:2px 8px;margin-right:6px;font-size:12px}
pre{white-space:pre-wrap;background:#fafafa;border-radius:8px;padding:8px}
.controls{position:sticky;top:0;background:#fff;padding:8px;border-bottom:1px solid #eee;margin:-16px -16px 12px}
small{color:#666}
</style></head><body>
<div class="controls">
<strong>Task:</strong> {{.Task}}<br>
<small>Model: {{.Model}} | Policy: {{.Policy}} | Created: {{.CreatedAt}}</small><br>
<small>Metrics — tokens: {{.Metrics.TotalTokens}}, tool_calls: {{.Metrics.ToolCalls}}, errors: {{.Metrics.Errors}}, total_latency_s: {{printf "%.3f" .Metrics.TotalLatencyS}}</small>
<div><label>Filter: <input id="q" oninput="f()" placeholder="filter step text"></label></div>
</div>
<div id="steps">
{{range .Steps}}<div class="step">
<div><span class="badge">Step {{.Step}}</span><span class="badge">lat: {{seconds .ModelLatency}}</span><span class="badge">tool: {{orDash .Action}}</span><span class="badge">err: {{ne .Error ""}}</span></div>
<pre><b>Thought</b>
{{.Thought}}</pre>
<pre><b>Action</b>
{{.Action}}

<b>Action Input</b>
{{.ActionInput}}</pre>
<pre><b>Observation</b>
{{.Observation}}</pre>
{{if .Error}}<pre><b>Error</b>
{{.Error}}</pre>{{end}}
</div>
{{end}}</div>
<script>
function f(){const q=document.getElementById('q').value.toLowerCase();
for(const el of document.querySelectorAll('.step')){el.style.display=el.innerText.toLowerCase().includes(q)?'':'none'}}
</script>
</body></html>
`))

// RenderHTML renders a sealed run as a single HTML report.
func RenderHTML(run *trace.Run) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, run); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
