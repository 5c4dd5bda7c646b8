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
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reqCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgforge",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"code", "path", "method"},
	)

	reqDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgforge",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"code", "path", "method"},
	)

	reqSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgforge",
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
		},
		[]string{"code", "path", "method"},
	)

	respSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgforge",
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
		},
		[]string{"code", "path", "method"},
	)

	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgforge",
			Name:      "cache_results_total",
			Help:      "Result cache lookups by outcome (hit, miss).",
		},
		[]string{"outcome"},
	)

	processingDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imgforge",
			Name:      "processing_duration_seconds",
			Help:      "Time spent running the transform pipeline, excluding fetch and cache.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sourceFetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "imgforge",
			Name:      "source_fetch_duration_seconds",
			Help:      "Time spent fetching the source image.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sourceImagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgforge",
			Name:      "source_images_fetched_total",
			Help:      "Source image fetches by outcome (success, error).",
		},
		[]string{"outcome"},
	)
)

// MetricsResponseWriter wraps http.ResponseWriter to capture the status
// code and bytes written, for the metrics middleware.
type MetricsResponseWriter struct {
	http.ResponseWriter
	Code   string
	Length int
}

func NewMetricsResponseWriter(w http.ResponseWriter) *MetricsResponseWriter {
	return &MetricsResponseWriter{ResponseWriter: w, Code: strconv.Itoa(http.StatusOK)}
}

func (w *MetricsResponseWriter) WriteHeader(code int) {
	w.Code = strconv.Itoa(code)
	w.ResponseWriter.WriteHeader(code)
}

func (w *MetricsResponseWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.Length += n
	return n, err
}

func calcRequestSize(r *http.Request) float64 {
	size := len(r.Method) + len(r.URL.String()) + len(r.Proto)
	for name, values := range r.Header {
		size += len(name)
		for _, v := range values {
			size += len(v)
		}
	}
	if r.ContentLength > 0 {
		size += int(r.ContentLength)
	}
	return float64(size)
}

func recordCacheOutcome(outcome string) {
	cacheHitsTotal.WithLabelValues(outcome).Inc()
}

func recordSourceFetch(outcome string, durationSeconds float64) {
	sourceImagesFetchedTotal.WithLabelValues(outcome).Inc()
	sourceFetchDurationSeconds.Observe(durationSeconds)
}
