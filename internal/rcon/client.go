// Package rcon implements a one-shot Source RCON client: every Execute call
// dials, authenticates, runs a single command and closes the connection.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDialTimeout = 5 * time.Second
	DefaultTimeout     = 10 * time.Second
)

const (
	authID       int32 = 1
	commandID    int32 = 2
	terminatorID int32 = 3
)

var errAuthRejected = errors.New("server rejected password")

// Address identifies the remote console of one game server.
type Address struct {
	Host   string
	Port   uint16
	Secret string
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// Client runs RCON sessions. The zero value uses the default timeouts.
// A Client holds no connections, so it is safe for concurrent use.
type Client struct {
	DialTimeout time.Duration
	// Timeout bounds the authentication wait and the response wait separately.
	Timeout time.Duration
}

// NewClient returns a Client with the given timeouts; zero values fall back
// to the defaults.
func NewClient(dialTimeout, timeout time.Duration) *Client {
	return &Client{DialTimeout: dialTimeout, Timeout: timeout}
}

// Execute opens a fresh session to addr, runs command and returns the
// concatenated response body or the classified failure.
func (c *Client) Execute(ctx context.Context, addr Address, command string) Outcome {
	dialer := net.Dialer{Timeout: c.dialTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return failed(ConnectFailed, err)
	}
	defer conn.Close()

	// Closing the connection unblocks any pending read when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s := &session{conn: conn, timeout: c.timeout()}
	if err := s.authenticate(addr.Secret); err != nil {
		return classify(ctx, err)
	}

	body, err := s.exec(command)
	if err != nil {
		return classify(ctx, err)
	}
	return succeeded(body)
}

func (c *Client) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return DefaultDialTimeout
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func classify(ctx context.Context, err error) Outcome {
	if errors.Is(err, errAuthRejected) {
		return failed(AuthFailed, err)
	}
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return failed(Timeout, ctxErr)
	case ctxErr != nil:
		return failed(ProtocolError, ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return failed(Timeout, err)
	}
	return failed(ProtocolError, err)
}

type session struct {
	conn    net.Conn
	timeout time.Duration
}

func (s *session) authenticate(secret string) error {
	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return fmt.Errorf("setting auth deadline: %w", err)
	}
	if err := WritePacket(s.conn, Packet{ID: authID, Type: TypeAuth, Body: secret}); err != nil {
		return err
	}

	for {
		p, err := ReadPacket(s.conn)
		if err != nil {
			return err
		}
		switch {
		case p.Type == TypeResponseValue:
			// srcds sends an empty RESPONSE_VALUE ahead of the auth answer
			continue
		case p.Type == TypeAuthResponse && p.ID == -1:
			return errAuthRejected
		case p.Type == TypeAuthResponse && p.ID == authID:
			return nil
		default:
			return fmt.Errorf("%w: unexpected auth reply id=%d type=%d", errMalformed, p.ID, p.Type)
		}
	}
}

// exec sends the command followed by an empty RESPONSE_VALUE. The server
// answers requests in order, so the echo of the second packet marks the end
// of a possibly multi-packet response.
func (s *session) exec(command string) (string, error) {
	if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		return "", fmt.Errorf("setting command deadline: %w", err)
	}
	if err := WritePacket(s.conn, Packet{ID: commandID, Type: TypeExecCommand, Body: command}); err != nil {
		return "", err
	}
	if err := WritePacket(s.conn, Packet{ID: terminatorID, Type: TypeResponseValue}); err != nil {
		return "", err
	}

	var body strings.Builder
	for {
		p, err := ReadPacket(s.conn)
		if err != nil {
			return "", err
		}
		switch p.ID {
		case commandID:
			body.WriteString(p.Body)
		case terminatorID:
			return body.String(), nil
		default:
			return "", fmt.Errorf("%w: unexpected response id %d", errMalformed, p.ID)
		}
	}
}
