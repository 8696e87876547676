// SPDX-License-Identifier: MPL-2.0

// Package protocol defines the messages exchanged between the hotswap engine,
// the host process and the host's module loader, together with the
// endpoints that carry them.
//
// Messages are tagged JSON objects whose "type" field selects the record.
// Request messages carry an id that is echoed by the matching reply so that
// concurrent requests never share a response.
package protocol
