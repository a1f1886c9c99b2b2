// SPDX-License-Identifier: EPL-2.0

package media

import "errors"

var (
	ErrUnknownFormat  = errors.New("unknown media format")
	ErrFormatMismatch = errors.New("source format does not match queue")
	ErrEmptyMedia     = errors.New("media decoded to no samples")
)
