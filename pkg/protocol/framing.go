package protocol

import (
	"encoding/binary"
	"io"

	"github.com/blockrelay/filerelay/internal/constants"
	qerrors "github.com/blockrelay/filerelay/internal/errors"
)

// WriteFrame writes payload to w as a 4-byte big-endian length prefix
// followed by the payload bytes. payload must already be the full encoded
// tagged message (tag byte included).
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > constants.MaxFrameSize {
		return qerrors.New(qerrors.PolicyError, "write_frame", qerrors.ErrFrameTooLarge)
	}
	var lenBuf [constants.FrameLengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return qerrors.New(qerrors.IoError, "write_frame", err)
	}
	if _, err := w.Write(payload); err != nil {
		return qerrors.New(qerrors.IoError, "write_frame", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r, rejecting the
// declared length before allocating a buffer for it so a hostile or
// corrupt peer cannot force an oversized allocation.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [constants.FrameLengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, qerrors.New(qerrors.IoError, "read_frame", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 || length > constants.MaxFrameSize {
		return nil, qerrors.New(qerrors.ProtocolError, "read_frame", qerrors.ErrFrameTooLarge)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, qerrors.New(qerrors.IoError, "read_frame", err)
	}
	return payload, nil
}

// PeekMessageType returns the tag byte of an already-read frame payload.
func PeekMessageType(payload []byte) (MessageType, error) {
	if len(payload) < TagSize {
		return 0, qerrors.New(qerrors.ProtocolError, "peek_message_type", qerrors.ErrUnexpectedMessageType)
	}
	return MessageType(payload[0]), nil
}
