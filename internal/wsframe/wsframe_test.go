package wsframe

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrameLargeTextPayloadHeaderPrefix(t *testing.T) {
	payload := make([]byte, 123278)
	frame, err := EncodeFrame(OpText, payload, true)
	require.NoError(t, err)

	want := []byte{0x81, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0xE1, 0x8E}
	require.GreaterOrEqual(t, len(frame), len(want))
	assert.Equal(t, want, frame[:len(want)])

	// header(10) + 4-byte mask key + payload
	assert.Len(t, frame, 10+4+len(payload))
}

func TestEncodeFrameSmallPayloadUnmasked(t *testing.T) {
	frame, err := EncodeFrame(OpText, []byte("hi"), false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x02, 'h', 'i'}, frame)
}

func TestEncodeFrameMediumPayloadLengthField(t *testing.T) {
	payload := make([]byte, 300)
	frame, err := EncodeFrame(OpBinary, payload, false)
	require.NoError(t, err)
	assert.Equal(t, byte(0x82), frame[0])
	assert.Equal(t, byte(126), frame[1])
	assert.Equal(t, []byte{0x01, 0x2C}, frame[2:4]) // 300
}

func TestEncodeFrameRejectsOversizedControlFrame(t *testing.T) {
	_, err := EncodeFrame(OpPing, make([]byte, 200), false)
	assert.Error(t, err)
}

func TestDecodeFrameRoundTrip(t *testing.T) {
	payload := []byte("round trip payload")
	encoded, err := EncodeFrame(OpText, payload, true)
	require.NoError(t, err)

	decoded, err := DecodeFrame(bytes.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, OpText, decoded.Opcode)
	assert.True(t, decoded.FIN)
	assert.Equal(t, payload, decoded.Payload)
}

func TestDecodeFrameRejectsReservedBits(t *testing.T) {
	bad := []byte{0xB1, 0x00} // RSV1 set
	_, err := DecodeFrame(bytes.NewReader(bad))
	assert.Error(t, err)
}

func TestAssemblerReassemblesContinuation(t *testing.T) {
	var a Assembler

	first := Frame{FIN: false, Opcode: OpText, Payload: []byte("hello ")}
	_, complete, err := a.Feed(first)
	require.NoError(t, err)
	assert.False(t, complete)

	second := Frame{FIN: true, Opcode: OpContinuation, Payload: []byte("world")}
	msg, complete, err := a.Feed(second)
	require.NoError(t, err)
	require.True(t, complete)
	assert.Equal(t, "hello world", string(msg.Payload))
	assert.Equal(t, OpText, msg.Opcode)
}

func TestAssemblerPassesControlFramesThroughImmediately(t *testing.T) {
	var a Assembler
	msg, complete, err := a.Feed(Frame{FIN: true, Opcode: OpPing, Payload: []byte("ping")})
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, OpPing, msg.Opcode)
}

func TestAssemblerRejectsStrayContinuation(t *testing.T) {
	var a Assembler
	_, _, err := a.Feed(Frame{FIN: true, Opcode: OpContinuation, Payload: []byte("x")})
	assert.Error(t, err)
}
