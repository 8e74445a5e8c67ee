package tor

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultControlTimeout bounds a whole control-port exchange
// (connect, authenticate, signal, quit).
const DefaultControlTimeout = 10 * time.Second

// replyOK is the status code Tor uses for a successful command.
const replyOK = 250

// authMethod selects how ControlClient authenticates.
type authMethod int

const (
	authNone authMethod = iota
	authPassword
	authCookie
)

// ControlAuth describes the credential presented to the control port.
// Use ControlAuthFromPassword for HashedControlPassword setups and
// ControlAuthFromCookie for CookieAuthentication (the embedded daemon).
type ControlAuth struct {
	method     authMethod
	password   string
	cookiePath string
}

// ControlAuthFromPassword authenticates with a shared secret.
func ControlAuthFromPassword(password string) ControlAuth {
	return ControlAuth{method: authPassword, password: password}
}

// ControlAuthFromCookie authenticates with the contents of Tor's
// control_auth_cookie file. The file is read on every operation because Tor
// rewrites it on restart.
func ControlAuthFromCookie(path string) ControlAuth {
	return ControlAuth{method: authCookie, cookiePath: path}
}

// ControlAuthNone sends a bare AUTHENTICATE for daemons without control auth.
func ControlAuthNone() ControlAuth {
	return ControlAuth{method: authNone}
}

// Method returns "password", "cookie" or "none".
func (a ControlAuth) Method() string {
	switch a.method {
	case authPassword:
		return "password"
	case authCookie:
		return "cookie"
	default:
		return "none"
	}
}

// command builds the AUTHENTICATE line for this credential.
func (a ControlAuth) command() (string, error) {
	switch a.method {
	case authPassword:
		return "AUTHENTICATE " + quoteString(a.password), nil
	case authCookie:
		cookie, err := os.ReadFile(a.cookiePath) //nolint:gosec // Path comes from operator configuration
		if err != nil {
			return "", fmt.Errorf("%w: read cookie %s: %w", ErrAuthenticationFailed, a.cookiePath, err)
		}
		return "AUTHENTICATE " + hex.EncodeToString(cookie), nil
	default:
		return "AUTHENTICATE", nil
	}
}

// quoteString encodes s as a control-protocol QuotedString.
func quoteString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

// ControlReply is one complete reply from the control port.
type ControlReply struct {
	// Status is the three digit status code shared by every reply line.
	Status int

	// Lines holds the text of each reply line after the status code.
	Lines []string

	// Data holds the lines of any "+" data block, without the terminating dot.
	Data []string
}

// OK reports whether the reply carries status 250.
func (r ControlReply) OK() bool {
	return r.Status == replyOK
}

// String renders the reply as "NNN text; text".
func (r ControlReply) String() string {
	return strconv.Itoa(r.Status) + " " + strings.Join(r.Lines, "; ")
}

// ControlClient talks to a Tor control port.
//
// A ControlClient holds no connection. Each operation dials, authenticates,
// runs its command, sends QUIT and closes, so a ControlClient is safe for
// concurrent use and never leaves a socket open between requests.
// ControlClient does not retry.
type ControlClient struct {
	address string
	auth    ControlAuth
	timeout time.Duration
	dialer  *net.Dialer
}

// ControlOption configures a ControlClient.
type ControlOption func(*ControlClient)

// WithControlTimeout bounds each operation's socket I/O.
func WithControlTimeout(timeout time.Duration) ControlOption {
	return func(c *ControlClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewControlClient creates a client for the control port at address.
// No connection is made until an operation is called.
func NewControlClient(address string, auth ControlAuth, opts ...ControlOption) (*ControlClient, error) {
	if !isValidHostPort(address) {
		return nil, ErrInvalidControlAddress
	}

	c := &ControlClient{
		address: address,
		auth:    auth,
		timeout: DefaultControlTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.dialer = &net.Dialer{Timeout: c.timeout}

	return c, nil
}

// Address returns the control port address.
func (c *ControlClient) Address() string {
	return c.address
}

// Authenticate verifies the configured credential in a throwaway session.
func (c *ControlClient) Authenticate(ctx context.Context) error {
	return c.withSession(ctx, func(*controlSession) error { return nil })
}

// NewIdentity authenticates and sends SIGNAL NEWNYM, asking Tor to use new
// circuits for subsequent streams. Tor itself rate-limits NEWNYM to roughly
// one per ten seconds and silently delays signals that arrive sooner.
func (c *ControlClient) NewIdentity(ctx context.Context) error {
	return c.withSession(ctx, func(s *controlSession) error {
		return s.signal("NEWNYM")
	})
}

// CircuitStatus returns the lines of GETINFO circuit-status.
func (c *ControlClient) CircuitStatus(ctx context.Context) ([]string, error) {
	var circuits []string
	err := c.withSession(ctx, func(s *controlSession) error {
		reply, err := s.command("GETINFO circuit-status")
		if err != nil {
			return err
		}
		if !reply.OK() {
			return fmt.Errorf("%w: %s", ErrSignalFailed, reply)
		}
		circuits = reply.Data
		return nil
	})
	return circuits, err
}

// withSession runs fn inside one authenticated connection.
// The connection is closed when fn returns or when ctx is cancelled,
// whichever comes first.
func (c *ControlClient) withSession(ctx context.Context, fn func(*controlSession) error) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrControlUnreachable, ctxErr)
		}
		return fmt.Errorf("%w at %s: %w", ErrControlUnreachable, c.address, err)
	}
	defer conn.Close()

	// Closing the socket is the only way to interrupt a blocked read.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close() //nolint:errcheck // Unblocks the pending read
	})
	defer stop()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("%w: %w", ErrSignalFailed, err)
	}

	s := newControlSession(conn)
	if err := s.authenticate(c.auth); err != nil {
		return withContextErr(ctx, err)
	}
	if err := fn(s); err != nil {
		return withContextErr(ctx, err)
	}
	s.quit()

	return nil
}

// withContextErr attaches the context error when cancellation caused err.
func withContextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w (%w)", err, ctxErr)
	}
	return err
}

// controlSession is one open control connection.
type controlSession struct {
	reader *textproto.Reader
	writer *bufio.Writer
}

func newControlSession(conn net.Conn) *controlSession {
	return &controlSession{
		reader: textproto.NewReader(bufio.NewReader(conn)),
		writer: bufio.NewWriter(conn),
	}
}

func (s *controlSession) authenticate(auth ControlAuth) error {
	line, err := auth.command()
	if err != nil {
		return err
	}
	reply, err := s.command(line)
	if err != nil {
		return err
	}
	if !reply.OK() {
		return fmt.Errorf("%w: %s", ErrAuthenticationFailed, reply)
	}
	return nil
}

func (s *controlSession) signal(name string) error {
	reply, err := s.command("SIGNAL " + name)
	if err != nil {
		return err
	}
	if !reply.OK() {
		return fmt.Errorf("%w: %s", ErrSignalFailed, reply)
	}
	return nil
}

// quit says goodbye. Failures are ignored; the connection is closed anyway.
func (s *controlSession) quit() {
	if _, err := s.command("QUIT"); err != nil {
		return
	}
}

// command writes one CRLF-terminated line and reads the full reply.
func (s *controlSession) command(line string) (ControlReply, error) {
	if _, err := s.writer.WriteString(line + "\r\n"); err != nil {
		return ControlReply{}, fmt.Errorf("%w: write: %w", ErrSignalFailed, err)
	}
	if err := s.writer.Flush(); err != nil {
		return ControlReply{}, fmt.Errorf("%w: write: %w", ErrSignalFailed, err)
	}
	return s.readReply()
}

// readReply reads "NNN-" mid lines, "NNN+" data blocks and the final
// "NNN " line of one reply.
func (s *controlSession) readReply() (ControlReply, error) {
	var reply ControlReply
	for {
		line, err := s.reader.ReadLine()
		if err != nil {
			return reply, fmt.Errorf("%w: read: %w", ErrSignalFailed, err)
		}
		if len(line) < 4 {
			return reply, fmt.Errorf("%w: %w: %q", ErrSignalFailed, ErrMalformedReply, line)
		}
		status, err := strconv.Atoi(line[:3])
		if err != nil {
			return reply, fmt.Errorf("%w: %w: %q", ErrSignalFailed, ErrMalformedReply, line)
		}
		reply.Status = status
		text := line[4:]

		switch line[3] {
		case ' ':
			reply.Lines = append(reply.Lines, text)
			return reply, nil
		case '-':
			reply.Lines = append(reply.Lines, text)
		case '+':
			reply.Lines = append(reply.Lines, text)
			data, err := s.reader.ReadDotLines()
			if err != nil {
				return reply, fmt.Errorf("%w: read data: %w", ErrSignalFailed, err)
			}
			reply.Data = append(reply.Data, data...)
		default:
			return reply, fmt.Errorf("%w: %w: %q", ErrSignalFailed, ErrMalformedReply, line)
		}
	}
}

// isValidHostPort checks for a non-empty host and a port in 1-65535.
func isValidHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
