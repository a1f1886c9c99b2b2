// SPDX-License-Identifier: EPL-2.0

package wire

import (
	"errors"
	"fmt"
)

var (
	ErrDecode  = errors.New("graph decode error")
	ErrEncode  = errors.New("graph encode error")
	ErrTrailer = errors.New("trailing bytes in section")
)

// DecodeError is the single failure kind of Decode. Err optionally carries a
// more specific cause such as graph.ErrDuplicateNode or graph.ErrResource.
type DecodeError struct {
	Section string
	Offset  int
	Reason  string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s at offset %d: %s", e.Section, e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}
