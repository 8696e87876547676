// SPDX-License-Identifier: MPL-2.0

// Package server exposes a running engine over HTTP: the websocket endpoint
// loader hooks connect to, graph dumps and Prometheus metrics.
//
// A Server is single-use and moves through the lifecycle states
// created, starting, running, stopping and stopped (or failed).
package server
