package stream

import "errors"

// ErrClosed is returned by a closed session or hub.
var ErrClosed = errors.New("stream closed")
