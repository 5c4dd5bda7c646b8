/*
 * SPDX-License-Identifier: AGPL-3.0-only
 *
 * Copyright (c) 2025 sycured
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, version 3.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"
)

// logResponseWriter wraps http.ResponseWriter to capture the status code
// and bytes written for the access-log line, the same shape as
// metrics.go's MetricsResponseWriter but kept separate since the access
// logger wraps the whole mux in Server() while the Prometheus middleware
// wraps each route in the Middleware chain.
type logResponseWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (w *logResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *logResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.length += n
	return n, err
}

// shouldLogAtLevel gates access-log lines by the configured level: "error"
// only logs 4xx/5xx responses, "warning" logs 3xx and up, anything else
// (including "info", the default) logs every request.
func shouldLogAtLevel(level string, status int) bool {
	switch strings.ToLower(level) {
	case "error":
		return status >= http.StatusBadRequest
	case "warning", "warn":
		return status >= http.StatusMultipleChoices
	default:
		return true
	}
}

// NewLog wraps next with an access-log handler that writes one
// Common-Log-Format-ish line per request to w, gated by level. Server()
// wraps the whole route mux with it so every route's response is logged.
// A handler that writes nothing is logged as 200, the status net/http sends.
func NewLog(next http.Handler, w io.Writer, level string) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &logResponseWriter{ResponseWriter: rw}

		next.ServeHTTP(lw, r)
		if lw.status == 0 {
			lw.status = http.StatusOK
		}

		if !shouldLogAtLevel(level, lw.status) {
			return
		}

		uri := r.RequestURI
		if uri == "" {
			uri = r.URL.RequestURI()
		}

		_, _ = fmt.Fprintf(w, "%s - - [%s] \"%s %s %s\" %d %d %s\n",
			clientAddr(r),
			start.Format("02/Jan/2006:15:04:05 -0700"),
			r.Method, uri, r.Proto,
			lw.status, lw.length,
			time.Since(start))
	})
}

func clientAddr(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		return strings.TrimSpace(strings.Split(xf, ",")[0])
	}
	return r.RemoteAddr
}

// debugf logs msg when DEBUG is "imgforge" or "*".
func debugf(msg string, values ...interface{}) {
	switch os.Getenv("DEBUG") {
	case "imgforge", "*":
		stdlog.Printf(msg, values...)
	}
}
