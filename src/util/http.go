package util

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// LogHandler provides middleware that logs all requests and response codes
// using logrus.
func LogHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rwi := &rwInterceptor{ResponseWriter: w}
		next.ServeHTTP(rwi, r)
		code := rwi.statusCode

		if code >= 500 {
			log.Errorf("%s %s -> %d", r.Method, r.URL.Path, code)
		} else if code >= 400 {
			log.Warnf("%s %s -> %d", r.Method, r.URL.Path, code)
		} else {
			log.Debugf("%s %s -> %d", r.Method, r.URL.Path, code)
		}
	})
}

type rwInterceptor struct {
	http.ResponseWriter
	statusCode int
}

func (rwi *rwInterceptor) WriteHeader(code int) {
	rwi.statusCode = code
	rwi.ResponseWriter.WriteHeader(code)
}

func (rwi *rwInterceptor) Write(b []byte) (int, error) {
	if rwi.statusCode == 0 {
		rwi.statusCode = http.StatusOK
	}
	return rwi.ResponseWriter.Write(b)
}

// Hijack keeps event stream endpoints working behind the interceptor.
func (rwi *rwInterceptor) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rwi.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("wrapped response writer does not support hijacking")
	}
	return hj.Hijack()
}

type gzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

// Gzip compresses responses for clients that accept it.
func Gzip(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		// Event streams hijack the connection and bypass this writer.
		if req.Header.Get("Upgrade") != "" ||
			req.Header.Get("Accept") == "text/event-stream" ||
			!strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
			handler.ServeHTTP(res, req)
			return
		}

		res.Header().Set("Content-Encoding", "gzip")
		gzipper := gzip.NewWriter(res)
		defer gzipper.Close()
		handler.ServeHTTP(gzipResponseWriter{Writer: gzipper, ResponseWriter: res}, req)
	})
}
