// Package rcontest provides an in-process RCON server for tests.
package rcontest

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/reedfamily/rconadmin/internal/rcon"
)

// Handler produces the response body for a command.
type Handler func(command string) string

// Server is a minimal Source RCON server bound to a loopback port.
type Server struct {
	password  string
	chunkSize int
	silent    bool

	handler  Handler
	listener net.Listener

	mu       sync.Mutex
	commands []string
	wg       sync.WaitGroup
}

// Option configures a Server before it starts accepting connections.
type Option func(*Server)

// WithChunkSize splits responses into several RESPONSE_VALUE packets.
func WithChunkSize(n int) Option {
	return func(s *Server) { s.chunkSize = n }
}

// WithSilence makes the server accept the command and never answer it.
func WithSilence() Option {
	return func(s *Server) { s.silent = true }
}

// NewServer starts a server and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB, password string, handler Handler, opts ...Option) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("rcontest: listen: %v", err)
	}
	s := &Server{password: password, handler: handler, listener: ln}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.serve()

	t.Cleanup(s.Close)
	return s
}

// Address returns the rcon address of the server using the given secret.
func (s *Server) Address(secret string) rcon.Address {
	host, portStr, _ := net.SplitHostPort(s.listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return rcon.Address{Host: host, Port: uint16(port), Secret: secret}
}

// Commands returns every command received so far, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Close stops accepting connections and waits for open sessions.
func (s *Server) Close() {
	s.listener.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	auth, err := rcon.ReadPacket(conn)
	if err != nil || auth.Type != rcon.TypeAuth {
		return
	}
	if err := rcon.WritePacket(conn, rcon.Packet{ID: auth.ID, Type: rcon.TypeResponseValue}); err != nil {
		return
	}
	if auth.Body != s.password {
		rcon.WritePacket(conn, rcon.Packet{ID: -1, Type: rcon.TypeAuthResponse})
		return
	}
	if err := rcon.WritePacket(conn, rcon.Packet{ID: auth.ID, Type: rcon.TypeAuthResponse}); err != nil {
		return
	}

	cmd, err := rcon.ReadPacket(conn)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.commands = append(s.commands, cmd.Body)
	s.mu.Unlock()

	term, err := rcon.ReadPacket(conn)
	if err != nil {
		return
	}
	if s.silent {
		// hold the connection open until the client gives up
		var buf [1]byte
		conn.Read(buf[:])
		return
	}

	body := ""
	if s.handler != nil {
		body = s.handler(cmd.Body)
	}
	for _, chunk := range split(body, s.chunkSize) {
		if err := rcon.WritePacket(conn, rcon.Packet{ID: cmd.ID, Type: rcon.TypeResponseValue, Body: chunk}); err != nil {
			return
		}
	}
	rcon.WritePacket(conn, rcon.Packet{ID: term.ID, Type: rcon.TypeResponseValue})
}

func split(body string, size int) []string {
	if size <= 0 || len(body) <= size {
		return []string{body}
	}
	var chunks []string
	for len(body) > size {
		chunks = append(chunks, body[:size])
		body = body[size:]
	}
	if body != "" {
		chunks = append(chunks, body)
	}
	return chunks
}
