package rcon

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Packet types of the Source RCON protocol. ExecCommand and AuthResponse
// share the same value; direction disambiguates them.
const (
	TypeResponseValue int32 = 0
	TypeExecCommand   int32 = 2
	TypeAuthResponse  int32 = 2
	TypeAuth          int32 = 3
)

const (
	// headerSize is id + type.
	headerSize = 8
	// MinPacketSize is the size field of a packet with an empty body.
	MinPacketSize = headerSize + 2
	// MaxPacketSize bounds the size field accepted from a server.
	MaxPacketSize = 16 * 1024
)

// Packet is a single RCON frame.
type Packet struct {
	ID   int32
	Type int32
	Body string
}

// WritePacket encodes p and writes it to w in one call.
//
// Wire format (little-endian):
// - int32 size (bytes that follow)
// - int32 id
// - int32 type
// - body, NUL terminator, empty-string NUL terminator
func WritePacket(w io.Writer, p Packet) error {
	size := MinPacketSize + len(p.Body)
	if size > MaxPacketSize {
		return fmt.Errorf("packet body too large: %d bytes", len(p.Body))
	}

	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.ID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Type))
	copy(buf[12:], p.Body)
	// trailing two bytes are already zero

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}
	return nil
}

// ReadPacket reads one frame from r.
func ReadPacket(r io.Reader) (Packet, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return Packet{}, fmt.Errorf("reading packet size: %w", err)
	}

	size := int32(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < MinPacketSize || size > MaxPacketSize {
		return Packet{}, fmt.Errorf("%w: invalid packet size %d", errMalformed, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Packet{}, fmt.Errorf("reading packet payload: %w", err)
	}

	body := buf[headerSize:]
	// Some servers omit the second terminator; trim whatever NULs are present.
	for len(body) > 0 && body[len(body)-1] == 0 {
		body = body[:len(body)-1]
	}

	return Packet{
		ID:   int32(binary.LittleEndian.Uint32(buf[0:4])),
		Type: int32(binary.LittleEndian.Uint32(buf[4:8])),
		Body: string(body),
	}, nil
}
