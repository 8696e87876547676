// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is the sentinel error wrapped by UnknownTypeError.
var ErrUnknownType = errors.New("unknown message type")

// UnknownTypeError is returned by Decode for an unrecognized discriminator.
type UnknownTypeError struct {
	Type Type
}

// Error implements the error interface for UnknownTypeError.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownType, e.Type)
}

// Unwrap returns ErrUnknownType for errors.Is() compatibility.
func (e *UnknownTypeError) Unwrap() error { return ErrUnknownType }

// Encode serializes msg as a JSON object with a leading "type" field.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("encode: nil message")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	tag, err := json.Marshal(msg.Type())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (Message, error) {
	var envelope struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch envelope.Type {
	case TypeFullReload:
		return decodeAs[FullReload](data)
	case TypeInvalidated:
		return decodeAs[Invalidated](data)
	case TypeFileChanged:
		return decodeAs[FileChanged](data)
	case TypeDumpRequest:
		return decodeAs[DumpRequest](data)
	case TypeDump:
		return decodeAs[Dump](data)
	case TypeAddRoot:
		return decodeAs[AddRoot](data)
	case TypeAddDependency:
		return decodeAs[AddDependency](data)
	case TypeGetVersion:
		return decodeAs[GetVersion](data)
	case TypeIsInsideGraph:
		return decodeAs[IsInsideGraph](data)
	case TypeDecline:
		return decodeAs[Decline](data)
	case TypeReply:
		return decodeAs[Reply](data)
	default:
		return nil, &UnknownTypeError{Type: envelope.Type}
	}
}

func decodeAs[T Message](data []byte) (Message, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", msg.Type(), err)
	}
	return msg, nil
}
