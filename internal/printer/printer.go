package printer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tableside-pos/internal/escpos"
)

const (
	DefaultPort           = 9100
	DefaultConnectTimeout = 5000 * time.Millisecond
)

var ErrNotConfigured = errors.New("printer IP not configured")

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateSending    State = "sending"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// TransportError reports the stage at which a print job failed.
type TransportError struct {
	Stage string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("printer %s: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Config struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	BusinessName   string
}

// Client sends one job per connection. It never retries.
type Client struct {
	cfg     Config
	encoder escpos.Encoder
	logger  *zap.Logger
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
	// observe is called on every state transition.
	observe func(State)
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return &Client{
		cfg:     cfg,
		encoder: escpos.Encoder{BusinessName: cfg.BusinessName},
		logger:  logger,
		dial:    dialer.DialContext,
		observe: func(State) {},
	}
}

func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.Host) != ""
}

func (c *Client) Address() string {
	return net.JoinHostPort(strings.TrimSpace(c.cfg.Host), strconv.Itoa(c.cfg.Port))
}

// Print encodes text and writes it to the printer. The connection is closed
// on every path once it has been opened.
func (c *Client) Print(ctx context.Context, text string) (err error) {
	c.observe(StateIdle)
	if !c.Configured() {
		return ErrNotConfigured
	}

	c.observe(StateConnecting)
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	conn, err := c.dial(dialCtx, "tcp", c.Address())
	cancel()
	if err != nil {
		c.observe(StateFailed)
		return &TransportError{Stage: "connect", Err: err}
	}
	defer func() {
		closeErr := conn.Close()
		if err == nil && closeErr != nil {
			err = &TransportError{Stage: "close", Err: closeErr}
		}
		if err != nil {
			c.observe(StateFailed)
			return
		}
		c.observe(StateClosed)
	}()

	c.observe(StateSending)
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	w := bufio.NewWriter(conn)
	if _, err := w.Write(c.encoder.Encode(text)); err != nil {
		return &TransportError{Stage: "write", Err: err}
	}
	if err := w.Flush(); err != nil {
		return &TransportError{Stage: "write", Err: err}
	}

	c.logger.Debug("print job sent", zap.String("printer", c.Address()))
	return nil
}
