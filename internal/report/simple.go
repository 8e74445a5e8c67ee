package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/exitswitch/internal/rotation"
)

const ruleWidth = 60

// SimpleWriter outputs plain text for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds timing and session details.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteRotation writes a rotation summary.
func (w *SimpleWriter) WriteRotation(result *rotation.Result, err error) (int, error) {
	v := NewRotationView(result, err)

	var sb strings.Builder
	writeTitle(&sb, "IDENTITY ROTATION")
	writeField(&sb, "Provider", ProviderDisplayName(v.Provider))
	writeField(&sb, "Tier", v.Tier)
	writeField(&sb, "Status", statusIndicator(v.Status))

	switch v.Status {
	case StatusCooldown:
		writeField(&sb, "Retry after", fmt.Sprintf("%ds", v.RetryAfterSeconds))
	case StatusError:
		writeField(&sb, "Error", v.Error)
	default:
		if v.OldSessionID != nil || v.NewSessionID != nil {
			writeField(&sb, "Old session", deref(v.OldSessionID))
			writeField(&sb, "New session", deref(v.NewSessionID))
		}
		writeField(&sb, "New exit IP", deref(v.NewIP))
		if v.VerificationError != "" {
			writeField(&sb, "Verification", v.VerificationError)
		}
	}

	if v.Message != "" {
		sb.WriteString("\n" + v.Message + "\n")
	}
	if v.Note != "" {
		sb.WriteString("Note: " + v.Note + "\n")
	}
	if w.verbose {
		writeField(&sb, "Duration", fmt.Sprintf("%dms", v.DurationMS))
	}
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")

	return io.WriteString(w.output, sb.String())
}

// WriteTest writes a proxy test summary.
func (w *SimpleWriter) WriteTest(result *rotation.TestResult) (int, error) {
	v := NewTestView(result)

	var sb strings.Builder
	writeTitle(&sb, "PROXY TEST")
	writeField(&sb, "Provider", ProviderDisplayName(v.Provider))
	writeField(&sb, "Tier", TierDisplayName(result.Tier))
	if v.SessionID != nil {
		session := *v.SessionID
		if !w.verbose {
			session = MaskToken(session)
		}
		writeField(&sb, "Session", session)
	}
	writeField(&sb, "Direct IP", deref(v.DirectIP))
	writeField(&sb, "Proxied IP", deref(v.ProxiedIP))
	if v.ProxyWorking {
		writeField(&sb, "Proxy working", "[OK] yes")
	} else {
		writeField(&sb, "Proxy working", "[!!] no")
	}
	if v.Error != "" {
		writeField(&sb, "Error", v.Error)
	}
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")

	return io.WriteString(w.output, sb.String())
}

func writeTitle(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")
}

func writeField(sb *strings.Builder, name, value string) {
	fmt.Fprintf(sb, "%-14s %s\n", name+":", value)
}

func statusIndicator(status string) string {
	switch status {
	case StatusSuccess:
		return "[OK] success"
	case StatusPartial:
		return "[??] rotated, new IP not confirmed"
	case StatusCooldown:
		return "[..] cooldown active"
	default:
		return "[!!] failed"
	}
}
