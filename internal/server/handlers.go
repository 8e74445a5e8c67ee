package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nao1215/exitswitch/internal/cooldown"
	"github.com/nao1215/exitswitch/internal/fetch"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/report"
	"github.com/nao1215/exitswitch/internal/rotation"
)

// circuitTimeout bounds the GETINFO issued by /proxy/status?circuits=true.
const circuitTimeout = 5 * time.Second

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status            string     `json:"status"`
	Kind              string     `json:"kind"`
	Detail            string     `json:"detail"`
	Tier              string     `json:"tier,omitempty"`
	Provider          string     `json:"provider,omitempty"`
	RetryAfterSeconds int        `json:"retry_after_seconds,omitempty"`
	Note              string     `json:"note,omitempty"`
	Fetch             *FetchView `json:"fetch,omitempty"`
}

// LegacyIdentityResponse is the body of POST /tor/new-identity.
type LegacyIdentityResponse struct {
	Status    string  `json:"status"`
	Message   string  `json:"message"`
	NewExitIP *string `json:"new_exit_ip"`
	Note      string  `json:"note"`
}

// LegacyTestResponse is the body of GET /tor/test.
type LegacyTestResponse struct {
	TorEnabled bool    `json:"tor_enabled"`
	TorProxy   string  `json:"tor_proxy,omitempty"`
	DirectIP   *string `json:"direct_ip"`
	ProxiedIP  *string `json:"proxied_ip,omitempty"`
	TorWorking bool    `json:"tor_working"`
	Error      string  `json:"error,omitempty"`
}

// TierStatus describes one tier in GET /proxy/status.
type TierStatus struct {
	Tier                     string  `json:"tier"`
	Provider                 string  `json:"provider"`
	Configured               bool    `json:"configured"`
	Address                  string  `json:"address,omitempty"`
	ControlAddress           string  `json:"control_address,omitempty"`
	Protocol                 string  `json:"protocol,omitempty"`
	CooldownRemainingSeconds float64 `json:"cooldown_remaining_seconds"`
	CooldownError            string  `json:"cooldown_error,omitempty"`
	SessionID                *string `json:"session_id"`
	Circuits                 *int    `json:"circuits,omitempty"`
	CircuitError             string  `json:"circuit_error,omitempty"`
}

// StatusResponse is the body of GET /proxy/status.
type StatusResponse struct {
	Tiers []TierStatus `json:"tiers"`
}

// FetchView is the body of GET /fetch.
type FetchView struct {
	URL         string               `json:"url"`
	FinalURL    string               `json:"final_url"`
	StatusCode  int                  `json:"status_code"`
	ContentType string               `json:"content_type,omitempty"`
	Body        string               `json:"body"`
	Truncated   bool                 `json:"truncated"`
	Attempts    int                  `json:"attempts"`
	Rotation    *report.RotationView `json:"rotation,omitempty"`
	ElapsedMS   int64                `json:"elapsed_ms"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// POST /proxy/new-identity
func (s *Server) newIdentity(c echo.Context) error {
	tier, err := tierParam(c)
	if err != nil {
		return s.writeError(c, err, model.TierPaid)
	}

	var opts []rotation.RotateOption
	if prev := c.QueryParam("previousIp"); prev != "" {
		ip, err := netip.ParseAddr(prev)
		if err != nil {
			return s.writeError(c, fmt.Errorf("%w: previousIp %q is not an IP address", ErrInvalidParameter, prev), tier)
		}
		opts = append(opts, rotation.WithPreviousIP(ip.Unmap()))
	}

	result, err := s.rotator.Rotate(c.Request().Context(), tier, opts...)
	if err != nil {
		return s.writeRotationError(c, tier, result, err)
	}
	return c.JSON(http.StatusOK, report.NewRotationView(result, nil))
}

// POST /tor/new-identity
func (s *Server) legacyNewIdentity(c echo.Context) error {
	result, err := s.rotator.Rotate(c.Request().Context(), model.TierFree)
	if err != nil {
		return s.writeRotationError(c, model.TierFree, result, err)
	}

	view := report.NewRotationView(result, nil)
	return c.JSON(http.StatusOK, LegacyIdentityResponse{
		Status:    "success",
		Message:   view.Message,
		NewExitIP: view.NewIP,
		Note:      view.Note,
	})
}

// GET /proxy/test
func (s *Server) testProxy(c echo.Context) error {
	tier, err := tierParam(c)
	if err != nil {
		return s.writeError(c, err, model.TierPaid)
	}
	return c.JSON(http.StatusOK, report.NewTestView(s.rotator.Test(c.Request().Context(), tier)))
}

// GET /tor/test
func (s *Server) legacyTest(c echo.Context) error {
	resp := LegacyTestResponse{}
	if s.descriptors != nil {
		if d, ok := s.descriptors.Descriptor(model.TierFree); ok {
			resp.TorEnabled = true
			resp.TorProxy = d.Address()
		}
	}

	view := report.NewTestView(s.rotator.Test(c.Request().Context(), model.TierFree))
	resp.DirectIP = view.DirectIP
	if resp.TorEnabled {
		resp.ProxiedIP = view.ProxiedIP
		resp.TorWorking = view.ProxyWorking
		resp.Error = view.Error
	}
	return c.JSON(http.StatusOK, resp)
}

// GET /proxy/status
func (s *Server) status(c echo.Context) error {
	ctx := c.Request().Context()
	withCircuits, _ := parseBool(c.QueryParam("circuits")) //nolint:errcheck // Anything but true means no

	resp := StatusResponse{Tiers: make([]TierStatus, 0, len(model.Tiers))}
	for _, tier := range model.Tiers {
		ts := TierStatus{
			Tier:     tier.String(),
			Provider: s.rotator.Provider(tier),
		}
		if s.descriptors != nil {
			if d, ok := s.descriptors.Descriptor(tier); ok {
				ts.Configured = true
				ts.Address = d.Address()
				ts.ControlAddress = d.ControlAddress()
				ts.Protocol = string(d.Protocol)
			}
		}

		remaining, err := s.rotator.Remaining(ctx, tier)
		if err != nil {
			ts.CooldownError = err.Error()
		}
		ts.CooldownRemainingSeconds = remaining.Seconds()

		if token := s.rotator.CurrentSession(ctx, tier); token != "" {
			masked := report.MaskToken(token)
			ts.SessionID = &masked
		}

		if tier.IsFree() && withCircuits && s.circuits != nil {
			s.fillCircuits(ctx, &ts)
		}
		resp.Tiers = append(resp.Tiers, ts)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) fillCircuits(ctx context.Context, ts *TierStatus) {
	ctx, cancel := context.WithTimeout(ctx, circuitTimeout)
	defer cancel()

	circuits, err := s.circuits.CircuitStatus(ctx)
	if err != nil {
		ts.CircuitError = err.Error()
		return
	}
	n := 0
	for _, line := range circuits {
		if strings.Contains(line, " BUILT ") {
			n++
		}
	}
	ts.Circuits = &n
}

// GET /fetch
func (s *Server) fetch(c echo.Context) error {
	tier, err := tierParam(c)
	if err != nil {
		return s.writeError(c, err, model.TierPaid)
	}
	rotateOnBlock, err := parseBool(c.QueryParam("rotateOnBlock"))
	if err != nil {
		return s.writeError(c, fmt.Errorf("%w: rotateOnBlock must be a boolean", ErrInvalidParameter), tier)
	}

	target := strings.TrimSpace(c.QueryParam("url"))
	if target == "" {
		return s.writeError(c, fmt.Errorf("%w: url is required", fetch.ErrInvalidURL), tier)
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}

	resp, err := s.fetcher.Fetch(c.Request().Context(), fetch.Request{
		URL:           target,
		Tier:          tier,
		RotateOnBlock: rotateOnBlock,
	})
	if err != nil {
		status, body := s.errorBody(err, tier)
		if body.Kind == KindInternal {
			status, body.Kind = http.StatusServiceUnavailable, KindProxyFailed
		}
		if resp != nil {
			body.Fetch = newFetchView(resp)
		}
		return c.JSON(status, body)
	}
	return c.JSON(http.StatusOK, newFetchView(resp))
}

func newFetchView(resp *fetch.Response) *FetchView {
	v := &FetchView{
		URL:         resp.URL,
		FinalURL:    resp.FinalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        string(resp.Body),
		Truncated:   resp.Truncated,
		Attempts:    resp.Attempts,
		ElapsedMS:   resp.Elapsed.Milliseconds(),
	}
	if resp.Rotation != nil {
		rv := report.NewRotationView(resp.Rotation, nil)
		v.Rotation = &rv
	}
	return v
}

// writeRotationError renders a failed or cooldown-blocked rotation.
func (s *Server) writeRotationError(c echo.Context, tier model.Tier, result *rotation.Result, err error) error {
	status, body := s.errorBody(err, tier)
	if errors.Is(err, cooldown.ErrCooldownActive) {
		body.Status = report.StatusCooldown
		remaining := cooldown.RemainingFrom(err)
		if result != nil {
			body.Note = result.Note
			remaining = result.Remaining
		}
		body.RetryAfterSeconds = report.RetryAfterSeconds(remaining.Seconds())
		c.Response().Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("identity rotation failed", "tier", tier.String(), "kind", body.Kind, "error", err)
	}
	return c.JSON(status, body)
}

func (s *Server) writeError(c echo.Context, err error, tier model.Tier) error {
	status, body := s.errorBody(err, tier)
	return c.JSON(status, body)
}

func (s *Server) errorBody(err error, tier model.Tier) (int, ErrorResponse) {
	status, kind := classifyError(err)
	return status, ErrorResponse{
		Status:   report.StatusError,
		Kind:     kind,
		Detail:   err.Error(),
		Tier:     tier.String(),
		Provider: s.rotator.Provider(tier),
	}
}

// handleHTTPError renders routing errors such as 404 and 405.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	detail := http.StatusText(status)
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		detail = fmt.Sprint(httpErr.Message)
	}

	kind := KindInvalidRequest
	if status >= http.StatusInternalServerError {
		kind = KindInternal
		s.logger.Error("unhandled server error", "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status) //nolint:errcheck // Nothing left to report to
		return
	}
	_ = c.JSON(status, ErrorResponse{Status: report.StatusError, Kind: kind, Detail: detail}) //nolint:errcheck // Nothing left to report to
}

// tierParam reads the isFree query parameter. It defaults to the paid tier.
func tierParam(c echo.Context) (model.Tier, error) {
	isFree, err := parseBool(c.QueryParam("isFree"))
	if err != nil {
		return model.TierPaid, fmt.Errorf("%w: isFree must be a boolean, got %q", ErrInvalidParameter, c.QueryParam("isFree"))
	}
	return model.TierFromIsFree(isFree), nil
}

// parseBool accepts the usual query spellings of a boolean. Empty is false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "f", "no", "n", "off":
		return false, nil
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	}
	return false, strconv.ErrSyntax
}
