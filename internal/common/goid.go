// Package common holds small helpers shared across the storage packages
// that don't belong to any one of them.
package common

import (
	"bytes"
	"runtime"
	"strconv"
)

// GoID returns the id of the calling goroutine, parsed out of the first
// line of its own stack trace. It is used only for log correlation in
// storage/buffer's BasicGuard.Drop Debug log when a guard unpins a page;
// it is not a stable or cheap API and must not be used for anything but
// diagnostics.
func GoID() int64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return -1
	}
	n, err := strconv.ParseInt(string(b[:i]), 10, 64)
	if err != nil {
		return -1
	}
	return n
}
