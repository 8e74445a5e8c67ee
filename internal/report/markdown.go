package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/nao1215/exitswitch/internal/rotation"
)

// MarkdownWriter outputs results as GitHub-flavored markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteRotation writes a rotation summary.
func (w *MarkdownWriter) WriteRotation(result *rotation.Result, err error) (int, error) {
	v := NewRotationView(result, err)
	md := markdown.NewMarkdown(w.output)

	md.H1("Identity Rotation")
	md.PlainText("")

	rows := [][]string{
		{"Provider", ProviderDisplayName(v.Provider)},
		{"Tier", v.Tier},
		{"State", "`" + v.State + "`"},
	}
	if v.OldSessionID != nil || v.NewSessionID != nil {
		rows = append(rows,
			[]string{"Old session", code(v.OldSessionID)},
			[]string{"New session", code(v.NewSessionID)},
		)
	}
	rows = append(rows,
		[]string{"New exit IP", code(v.NewIP)},
		[]string{"Verified", strconv.FormatBool(v.Verified)},
		[]string{"Duration", fmt.Sprintf("%dms", v.DurationMS)},
	)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch v.Status {
	case StatusSuccess:
		md.Tip(v.Message)
	case StatusPartial:
		md.Importantf("Rotation done but the new exit IP was not confirmed: %s", v.VerificationError)
	case StatusCooldown:
		md.Warningf("Cooldown active. Retry in %d seconds.", v.RetryAfterSeconds)
	default:
		md.Cautionf("Rotation failed: %s", v.Error)
	}
	if v.Note != "" {
		md.PlainText("")
		md.Note(v.Note)
	}

	return len(md.String()), md.Build()
}

// WriteTest writes a proxy test summary.
func (w *MarkdownWriter) WriteTest(result *rotation.TestResult) (int, error) {
	v := NewTestView(result)
	md := markdown.NewMarkdown(w.output)

	md.H1("Proxy Test")
	md.PlainText("")

	session := "-"
	if v.SessionID != nil {
		session = "`" + MaskToken(*v.SessionID) + "`"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Provider", ProviderDisplayName(v.Provider)},
			{"Tier", TierDisplayName(result.Tier)},
			{"Session", session},
			{"Direct IP", code(v.DirectIP)},
			{"Proxied IP", code(v.ProxiedIP)},
			{"Proxy working", strconv.FormatBool(v.ProxyWorking)},
		},
	})
	md.PlainText("")

	switch {
	case v.Error != "":
		md.Cautionf("Lookup failed: %s", v.Error)
	case !v.ProxyWorking:
		md.Warningf("The proxied address equals the direct address.")
	default:
		md.Tip("Traffic leaves through the proxy.")
	}

	return len(md.String()), md.Build()
}

func code(s *string) string {
	if s == nil {
		return "-"
	}
	return "`" + *s + "`"
}
