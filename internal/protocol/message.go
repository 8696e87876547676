// SPDX-License-Identifier: MPL-2.0

package protocol

import "github.com/invowk/hotswap/internal/graph"

// Message types.
const (
	TypeFullReload    Type = "full-reload"
	TypeInvalidated   Type = "invalidated"
	TypeFileChanged   Type = "file-changed"
	TypeDumpRequest   Type = "dump-request"
	TypeDump          Type = "dump"
	TypeAddRoot       Type = "add-root"
	TypeAddDependency Type = "add-dependency"
	TypeGetVersion    Type = "get-version"
	TypeIsInsideGraph Type = "is-inside-graph"
	TypeDecline       Type = "decline"
	TypeReply         Type = "reply"
)

// File actions reported by the watcher.
const (
	ActionChange Action = "change"
	ActionAdd    Action = "add"
	ActionUnlink Action = "unlink"
)

type (
	// Type is the discriminator of a message.
	Type string

	// Action is a filesystem change kind.
	Action string

	// Message is implemented by every protocol record.
	Message interface {
		Type() Type
	}

	// Request is a message that expects a correlated reply.
	Request interface {
		Message
		RequestID() string
	}

	// FullReload asks the host to restart. ShouldBeReloadable signals a
	// misdeclared boundary the developer should fix.
	FullReload struct {
		Path               string `json:"path"`
		ShouldBeReloadable bool   `json:"shouldBeReloadable,omitempty"`
	}

	// Invalidated lists modules whose version changed, changed file first.
	Invalidated struct {
		Paths []string `json:"paths"`
	}

	// FileChanged reports a change outside the tracked graph.
	FileChanged struct {
		Path   string `json:"path"`
		Action Action `json:"action"`
	}

	// DumpRequest asks the engine for a graph snapshot.
	DumpRequest struct {
		ID string `json:"id"`
	}

	// Dump answers a DumpRequest.
	Dump struct {
		ID   string           `json:"id"`
		Dump []graph.DumpNode `json:"dump"`
	}

	// AddRoot registers the entry point of the host.
	AddRoot struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}

	// AddDependency records that Parent imports Child through Specifier.
	// Boundary carries the loader's boundary intent.
	AddDependency struct {
		ID        string `json:"id"`
		Parent    string `json:"parent"`
		Child     string `json:"child"`
		Specifier string `json:"specifier"`
		Boundary  bool   `json:"boundary,omitempty"`
	}

	// GetVersion asks for the cache-busting version of Path.
	GetVersion struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}

	// IsInsideGraph asks whether Path is tracked.
	IsInsideGraph struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}

	// Decline marks Path as non-swappable.
	Decline struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}

	// Reply answers a loader request. Error is set when the request failed.
	Reply struct {
		ID          string `json:"id"`
		Version     *int   `json:"version,omitempty"`
		InsideGraph *bool  `json:"insideGraph,omitempty"`
		Error       string `json:"error,omitempty"`
	}
)

// Type implements Message.
func (FullReload) Type() Type { return TypeFullReload }

// Type implements Message.
func (Invalidated) Type() Type { return TypeInvalidated }

// Type implements Message.
func (FileChanged) Type() Type { return TypeFileChanged }

// Type implements Message.
func (DumpRequest) Type() Type { return TypeDumpRequest }

// Type implements Message.
func (Dump) Type() Type { return TypeDump }

// Type implements Message.
func (AddRoot) Type() Type { return TypeAddRoot }

// Type implements Message.
func (AddDependency) Type() Type { return TypeAddDependency }

// Type implements Message.
func (GetVersion) Type() Type { return TypeGetVersion }

// Type implements Message.
func (IsInsideGraph) Type() Type { return TypeIsInsideGraph }

// Type implements Message.
func (Decline) Type() Type { return TypeDecline }

// Type implements Message.
func (Reply) Type() Type { return TypeReply }

// RequestID implements Request.
func (m DumpRequest) RequestID() string { return m.ID }

// RequestID implements Request.
func (m AddRoot) RequestID() string { return m.ID }

// RequestID implements Request.
func (m AddDependency) RequestID() string { return m.ID }

// RequestID implements Request.
func (m GetVersion) RequestID() string { return m.ID }

// RequestID implements Request.
func (m IsInsideGraph) RequestID() string { return m.ID }

// RequestID implements Request.
func (m Decline) RequestID() string { return m.ID }

// replyID returns the correlation id of a response message.
func replyID(msg Message) (string, bool) {
	switch m := msg.(type) {
	case Reply:
		return m.ID, true
	case Dump:
		return m.ID, true
	default:
		return "", false
	}
}

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	switch a {
	case ActionChange, ActionAdd, ActionUnlink:
		return true
	default:
		return false
	}
}
