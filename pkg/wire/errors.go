// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import "fmt"

// Kind is the closed set of wire-level error categories a client can act on.
type Kind int

const (
	ErrMalformedFrame Kind = iota
	ErrUnknownPacket
	ErrUnknownType
	ErrTypeMismatch
	ErrDomainError
	ErrEnumDomain
	ErrChecksumMismatch
	ErrServerException
	ErrTimeout
	ErrConnectionClosed
	ErrProtocolViolation
	ErrUnknownCompressionMethod
)

func (k Kind) String() string {
	switch k {
	case ErrMalformedFrame:
		return "MalformedFrame"
	case ErrUnknownPacket:
		return "UnknownPacket"
	case ErrUnknownType:
		return "UnknownType"
	case ErrTypeMismatch:
		return "TypeMismatch"
	case ErrDomainError:
		return "DomainError"
	case ErrEnumDomain:
		return "EnumDomain"
	case ErrChecksumMismatch:
		return "ChecksumMismatch"
	case ErrServerException:
		return "ServerException"
	case ErrTimeout:
		return "Timeout"
	case ErrConnectionClosed:
		return "ConnectionClosed"
	case ErrProtocolViolation:
		return "ProtocolViolation"
	case ErrUnknownCompressionMethod:
		return "UnknownCompressionMethod"
	default:
		return "Unknown"
	}
}

// WireError is the concrete error type raised by this package and by
// pkg/client on top of it. It carries a closed Kind so callers can branch on
// category without string matching, and an optional Cause for %w-chains.
type WireError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *WireError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *WireError) Unwrap() error { return e.Cause }

// Is reports whether target is a *WireError with the same Kind, so callers
// can use errors.Is(err, wire.NewError(wire.ErrTimeout, "")) as a category
// check without caring about Message or Cause.
func (e *WireError) Is(target error) bool {
	other, ok := target.(*WireError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// NewError builds a *WireError with no underlying cause.
func NewError(kind Kind, message string) *WireError {
	return &WireError{Kind: kind, Message: message}
}

// WrapError builds a *WireError chaining cause via Unwrap.
func WrapError(kind Kind, message string, cause error) *WireError {
	return &WireError{Kind: kind, Message: message, Cause: cause}
}

// ServerException mirrors the server's Exception packet: a linked chain of
// (code, name, message, stack trace) identical in shape to
// org.houseflys.jdbc's Exception wire record.
type ServerException struct {
	Code       int32
	Name       string
	Message    string
	StackTrace string
	Nested     *ServerException
}

func (e *ServerException) Error() string {
	if e.Nested != nil {
		return fmt.Sprintf("%s (code %d): %s\ncaused by: %v", e.Name, e.Code, e.Message, e.Nested)
	}
	return fmt.Sprintf("%s (code %d): %s", e.Name, e.Code, e.Message)
}

func (e *ServerException) Unwrap() error {
	if e.Nested == nil {
		return nil
	}
	return e.Nested
}
