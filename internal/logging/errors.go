// SPDX-License-Identifier: EPL-2.0

package logging

import "errors"

var (
	ErrUnknownLevel = errors.New("unknown log level")
)
