// Zaparoo Core
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Core.
//
// Zaparoo Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Core.  If not, see <http://www.gnu.org/licenses/>.

// Package download implements the Parallel Media Downloader: a long-lived
// HTTP/2 client with connection pooling, a bounded worker pool, retry with
// backoff, and cooperative cancellation (spec §4.4).
package download

import (
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// newTransport builds a persistent, connection-pooled HTTP/2 transport. The
// idle-connection pool cap is maxConns (Config.MaxConnections), set
// independently of the pipeline's worker count.
func newTransport(maxConns int, timeout time.Duration) *http.Transport {
	t := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          maxConns,
		MaxIdleConnsPerHost:   maxConns,
		IdleConnTimeout:       90 * time.Second,
	}
	// Best-effort: if the remote doesn't speak h2 this silently falls back
	// to h1.1 over the same transport.
	_ = http2.ConfigureTransport(t)
	return t
}

// newClient builds a *http.Client with the pipeline's tuned transport. The
// client-level timeout bounds each request (including reading its body)
// separately, so retries each get a fresh budget.
func newClient(maxConns int, timeout time.Duration) *http.Client {
	return &http.Client{Transport: newTransport(maxConns, timeout), Timeout: timeout}
}
