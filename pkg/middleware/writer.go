package middleware

import (
	"bufio"
	"net"
	"net/http"
)

// StatusWriter records the status code written through it.
// Flush and Hijack are forwarded so streaming and upgraded connections keep working.
type StatusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

// WrapWriter returns w wrapped in a StatusWriter.
func WrapWriter(w http.ResponseWriter) *StatusWriter {
	if sw, ok := w.(*StatusWriter); ok {
		return sw
	}
	return &StatusWriter{ResponseWriter: w}
}

// Status returns the written status code, or 200 when none was written explicitly.
func (w *StatusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Bytes returns the number of body bytes written.
func (w *StatusWriter) Bytes() int64 {
	return w.bytes
}

func (w *StatusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *StatusWriter) Flush() {
	http.NewResponseController(w.ResponseWriter).Flush()
}

func (w *StatusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if w.status == 0 {
		w.status = http.StatusSwitchingProtocols
	}
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
