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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// setupTLSConfig creates and returns the TLS configuration if certificates are provided.
func setupTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load X509 key pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// createHTTPServer creates an HTTP/HTTPS server with the given handler and timeouts.
func createHTTPServer(addr string, handler http.Handler, cfg *Config, tlsConfig *tls.Config) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        handler,
		MaxHeaderBytes: 1 << 20,
		ReadTimeout:    time.Duration(cfg.Timeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Timeout) * time.Second,
		TLSConfig:      tlsConfig,
	}
}

// createHTTP3Server creates an HTTP/3 server if TLS is configured.
func createHTTP3Server(addr string, handler http.Handler, tlsConfig *tls.Config) *http3.Server {
	if tlsConfig == nil {
		return nil
	}

	return &http3.Server{
		Addr:      addr,
		Handler:   handler,
		TLSConfig: http3.ConfigureTLSConfig(tlsConfig),
		QUICConfig: &quic.Config{
			MaxIdleTimeout: 30 * time.Second,
			Allow0RTT:      false,
		},
	}
}

// startHTTPServer starts the HTTP/HTTPS server in a goroutine.
func startHTTPServer(server *http.Server, certFile, keyFile string) {
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			log.Printf("Starting HTTPS server on %s", server.Addr)
			err = server.ListenAndServeTLS(certFile, keyFile)
		} else {
			log.Printf("Starting HTTP server on %s", server.Addr)
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP(S) server error: %s\n", err)
		}
	}()
}

// startHTTP3Server starts the HTTP/3 server in a goroutine if it exists.
func startHTTP3Server(server *http3.Server) {
	if server == nil {
		return
	}

	go func() {
		log.Printf("Starting HTTP/3 server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil {
			log.Fatalf("HTTP/3 server error: %s\n", err)
		}
	}()
}

// metricsHandler exposes Prometheus exposition format.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}

// altSvcMiddleware advertises HTTP/3 on the same port the HTTPS listener
// binds; the gateway shares one bind address for both.
func altSvcMiddleware(h http.Handler, bind string) http.Handler {
	_, port, err := net.SplitHostPort(bind)
	if err != nil {
		return h
	}
	altSvcValue := fmt.Sprintf(`h3=":%s"; ma=2592000`, port)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", altSvcValue)
		h.ServeHTTP(w, r)
	})
}

// NewServerMux builds the gateway's HTTP surface: GET /status,
// GET /info/<path>, GET /<path>, GET /metrics, and /debug/health.
func NewServerMux(a *App) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/status", a.Middleware(a.statusController))
	mux.Handle("/info/", a.Middleware(a.infoController))
	mux.Handle("/debug/health", a.Middleware(a.healthController))
	mux.Handle("/metrics", metricsHandler())
	mux.Handle("/", a.Middleware(a.imageController))

	return mux
}

// Server sets up and runs the HTTP and HTTP/3 servers until an interrupt
// or termination signal triggers graceful shutdown.
func Server(a *App) {
	baseHandler := NewLog(NewServerMux(a), os.Stdout, a.cfg.LogLevel)
	handler := http.TimeoutHandler(altSvcMiddleware(baseHandler, a.cfg.Bind), time.Duration(a.cfg.Timeout)*time.Second, "request timed out")

	tlsConfig, err := setupTLSConfig(a.cfg.CertFile, a.cfg.KeyFile)
	if err != nil {
		log.Panic(err)
	}

	httpServer := createHTTPServer(a.cfg.Bind, handler, a.cfg, tlsConfig)
	http3Server := createHTTP3Server(a.cfg.Bind, baseHandler, tlsConfig)

	startHTTPServer(httpServer, a.cfg.CertFile, a.cfg.KeyFile)
	startHTTP3Server(http3Server)

	if a.cfg.PrometheusBind != "" {
		promServer := &http.Server{Addr: a.cfg.PrometheusBind, Handler: metricsHandler()}
		startHTTPServer(promServer, "", "")
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done
	log.Print("Graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %+v", err)
	}

	log.Print("Server shutdown completed")
}
