// Package wsframe implements a minimal RFC 6455 WebSocket frame codec for
// the proxy's embedded control channels (config, logs, recorder, worker),
// component C7.
//
// Hand-rolled rather than built on github.com/gorilla/websocket (present
// in the pack via aofei-air and teemuteemu-caddy-language-server):
// the spec pins an exact byte-level frame header for a specific payload
// length, which a library's encapsulated conn.WriteMessage/ReadMessage
// API would hide behind its own framing. Grounded on the RFC 6455 layout
// directly, in the style of the teacher's own low-level byte handling in
// internal/proxy/proxy.go (raw header parsing over bufio.Scanner).
package wsframe

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// Opcode is a WebSocket frame's opcode, per RFC 6455 §5.2.
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// Frame is one decoded WebSocket frame.
type Frame struct {
	FIN     bool
	Opcode  Opcode
	Masked  bool
	Payload []byte
}

// IsControl reports whether the frame's opcode is a control frame
// (close/ping/pong), which RFC 6455 requires to be unfragmented and at
// most 125 bytes of payload.
func (f Frame) IsControl() bool {
	return f.Opcode == OpClose || f.Opcode == OpPing || f.Opcode == OpPong
}

// EncodeFrame builds a single complete WebSocket frame. masked selects
// client-to-server framing (mask bit set, random masking key, payload
// XORed) versus server-to-client framing (mask bit clear, payload sent
// verbatim) — server responses from the proxy's own feature channels are
// never masked, per RFC 6455 §5.1.
func EncodeFrame(opcode Opcode, payload []byte, masked bool) ([]byte, error) {
	if (opcode == OpClose || opcode == OpPing || opcode == OpPong) && len(payload) > 125 {
		return nil, fmt.Errorf("wsframe: control frame payload too large: %d bytes", len(payload))
	}

	header := make([]byte, 0, 14)
	header = append(header, 0x80|byte(opcode)) // FIN=1, RSV=0

	maskBit := byte(0)
	if masked {
		maskBit = 0x80
	}

	n := len(payload)
	switch {
	case n <= 125:
		header = append(header, maskBit|byte(n))
	case n <= 65535:
		header = append(header, maskBit|126)
		var lenBytes [2]byte
		binary.BigEndian.PutUint16(lenBytes[:], uint16(n))
		header = append(header, lenBytes[:]...)
	default:
		header = append(header, maskBit|127)
		var lenBytes [8]byte
		binary.BigEndian.PutUint64(lenBytes[:], uint64(n))
		header = append(header, lenBytes[:]...)
	}

	if !masked {
		return append(header, payload...), nil
	}

	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("wsframe: generating masking key: %w", err)
	}
	header = append(header, key[:]...)

	out := make([]byte, n)
	applyMask(out, payload, key)

	return append(header, out...), nil
}

// applyMask XORs src against key, cycling the 4-byte key, writing into dst.
func applyMask(dst, src []byte, key [4]byte) {
	for i := range src {
		dst[i] = src[i] ^ key[i%4]
	}
}

// DecodeFrame reads exactly one frame from r. It does not assemble
// continuation frames — callers needing a full message use Assembler.
func DecodeFrame(r io.Reader) (Frame, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Frame{}, err
	}

	fin := head[0]&0x80 != 0
	rsv := head[0] & 0x70
	opcode := Opcode(head[0] & 0x0F)
	if rsv != 0 {
		return Frame{}, fmt.Errorf("wsframe: non-zero reserved bits: %#x", rsv)
	}

	masked := head[1]&0x80 != 0
	lenIndicator := head[1] & 0x7F

	var length uint64
	switch {
	case lenIndicator <= 125:
		length = uint64(lenIndicator)
	case lenIndicator == 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	default: // 127
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	if (opcode == OpClose || opcode == OpPing || opcode == OpPong) && length > 125 {
		return Frame{}, fmt.Errorf("wsframe: control frame declares oversized payload: %d bytes", length)
	}

	var key [4]byte
	if masked {
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return Frame{}, err
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	if masked {
		applyMask(payload, payload, key)
	}

	return Frame{FIN: fin, Opcode: opcode, Masked: masked, Payload: payload}, nil
}

// Assembler accumulates continuation frames into one logical message,
// per RFC 6455 §5.4.
type Assembler struct {
	opcode  Opcode
	payload []byte
	active  bool
}

// Feed processes one decoded frame. Control frames pass through
// immediately with complete=true (they are always unfragmented) and leave
// any message being assembled untouched. Data frames accumulate until FIN;
// complete reports when msg is a finished message.
func (a *Assembler) Feed(f Frame) (msg Frame, complete bool, err error) {
	if f.IsControl() {
		return f, true, nil
	}

	switch {
	case !a.active && f.Opcode == OpContinuation:
		return Frame{}, false, fmt.Errorf("wsframe: continuation frame with no active message")
	case !a.active:
		a.active = true
		a.opcode = f.Opcode
		a.payload = append([]byte(nil), f.Payload...)
	case f.Opcode == OpContinuation:
		a.payload = append(a.payload, f.Payload...)
	default:
		return Frame{}, false, fmt.Errorf("wsframe: new data frame while assembling a fragmented message")
	}

	if !f.FIN {
		return Frame{}, false, nil
	}

	out := Frame{FIN: true, Opcode: a.opcode, Payload: a.payload}
	a.active = false
	a.opcode = 0
	a.payload = nil
	return out, true, nil
}
