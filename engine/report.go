package engine

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// WriteJSON emits v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	out, err := jsoniter.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n", out)

	return err
}

// PrintRunSummary renders the human-readable report for a single run.
func PrintRunSummary(s RunSummary) {
	fmt.Println()
	fmt.Println(StyleBold.S("=== RUN SUMMARY ==="))
	fmt.Printf("connections_ok:     %d\n", s.ConnectionsOK)
	fmt.Printf("connections_failed: %s\n", colorCount(s.ConnectionsFailed))
	fmt.Printf("requests_sent:      %d\n", s.RequestsSent)
	fmt.Printf("responses_observed: %d\n", s.ResponsesObserved)
	fmt.Printf("ttfb_ms_p50:        %s\n", fmtMs(s.TTFBMsP50))
	fmt.Printf("ttfb_ms_p90:        %s\n", fmtMs(s.TTFBMsP90))
	fmt.Printf("ttfb_ms_p95:        %s\n", fmtMs(s.TTFBMsP95))
	fmt.Printf("ttfb_ms_p99:        %s\n", fmtMs(s.TTFBMsP99))
	fmt.Printf("bytes_sent:         %d\n", s.BytesSent)
	fmt.Printf("bytes_recv:         %d\n", s.BytesRecv)
	fmt.Printf("duration_s:         %.2f\n", s.DurationS)
}

// PrintSweepStep renders one attempted sweep step as it completes.
func PrintSweepStep(r SweepResult) {
	verdict := StyleGreen.S("pass")
	if !r.Pass {
		verdict = StyleRed.S("FAIL")
	}

	fmt.Printf("\n[SWEEP] clients=%d %s fail%%=%.2f p50=%s req=%d resp=%d\n",
		r.Clients, verdict, r.FailPct, fmtMs(r.Summary.TTFBMsP50),
		r.Summary.RequestsSent, r.Summary.ResponsesObserved)
}

// PrintSweepOutcome renders the final sweep report.
func PrintSweepOutcome(o SweepOutcome) {
	fmt.Println()
	fmt.Println(StyleBold.S("=== SWEEP RESULTS ==="))

	for _, r := range o.Results {
		fmt.Printf("clients=%d p50=%s p90=%s ok=%d fail=%d\n",
			r.Clients, fmtMs(r.Summary.TTFBMsP50), fmtMs(r.Summary.TTFBMsP90),
			r.Summary.ConnectionsOK, r.Summary.ConnectionsFailed)
	}

	fmt.Printf("\nPeak stable clients (per criteria): %s\n",
		StyleBold.S(fmt.Sprintf("%d", o.Peak)))
}

func fmtMs(v *float64) string {
	if v == nil {
		return StyleFaint.S("n/a")
	}

	return fmt.Sprintf("%.2f", *v)
}

func colorCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return StyleYellow.S(s)
	}

	return s
}
