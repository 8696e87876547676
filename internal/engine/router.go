// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"

	"github.com/invowk/hotswap/internal/protocol"
)

// Dispatch queues a filesystem event. Events for the same path are handled
// in submission order; events for different paths may run concurrently.
// Events arriving after Close are dropped.
func (e *Engine) Dispatch(ctx context.Context, path string, action protocol.Action) {
	queued := e.seq.submit(path, func() {
		if ctx.Err() != nil {
			return
		}
		e.HandlePathEvent(ctx, path, action)
	})
	if !queued {
		e.logger.Debug("engine closed, dropping event", "path", path, "action", action)
	}
}

// HandlePathEvent routes one filesystem event, broadcasts the resulting
// message and returns it.
func (e *Engine) HandlePathEvent(ctx context.Context, path string, action protocol.Action) protocol.Message {
	e.metrics.events.WithLabelValues(string(action)).Inc()

	if action == protocol.ActionUnlink {
		return e.handleRemoval(ctx, path)
	}
	if _, err := e.fs.Stat(path); err != nil {
		e.logger.Debug("file vanished before handling", "path", path, "error", err)
		return e.handleRemoval(ctx, path)
	}

	// Must happen before any reloadability decision: the file's own imports
	// may have changed.
	e.checker.Invalidate(path)

	if e.restart.Match(path) {
		e.metrics.fullReloads.WithLabelValues(reasonRestartPattern).Inc()
		e.logger.Info("full reload", "path", e.relative(path), "reason", reasonRestartPattern)
		return e.emit(ctx, protocol.FullReload{Path: path})
	}

	e.mu.Lock()
	if !e.graph.Has(path) {
		e.mu.Unlock()
		e.logger.Debug("file outside graph changed", "path", path, "action", action)
		return e.emit(ctx, protocol.FileChanged{Path: path, Action: action})
	}

	r := e.graph.IsReloadable(path)
	if !r.Reloadable {
		e.mu.Unlock()
		reason := reasonNotReloadable
		if r.ShouldBeReloadable {
			reason = reasonMisdeclared
		}
		e.metrics.fullReloads.WithLabelValues(reason).Inc()
		e.logger.Info("full reload", "path", e.relative(path), "reason", reason)
		return e.emit(ctx, protocol.FullReload{Path: path, ShouldBeReloadable: r.ShouldBeReloadable})
	}

	paths := e.graph.InvalidateFileAndDependents(path)
	declined := ""
	for _, p := range paths {
		if e.graph.IsDeclined(p) {
			declined = p
			break
		}
	}
	e.mu.Unlock()

	e.metrics.invalidated.Add(float64(len(paths)))
	if declined != "" {
		e.metrics.fullReloads.WithLabelValues(reasonDeclined).Inc()
		e.logger.Info("full reload", "path", e.relative(path), "reason", reasonDeclined, "declined", e.relative(declined))
		return e.emit(ctx, protocol.FullReload{Path: path})
	}

	e.logger.Debug("invalidated", "path", path, "count", len(paths))
	return e.emit(ctx, protocol.Invalidated{Paths: paths})
}

func (e *Engine) handleRemoval(ctx context.Context, path string) protocol.Message {
	e.mu.Lock()
	removed := e.graph.Remove(path)
	e.metrics.nodes.Set(float64(e.graph.Len()))
	e.mu.Unlock()

	e.checker.Invalidate(path)
	if removed {
		e.logger.Debug("removed from graph", "path", path)
	}
	return e.emit(ctx, protocol.FileChanged{Path: path, Action: protocol.ActionUnlink})
}

func (e *Engine) emit(ctx context.Context, msg protocol.Message) protocol.Message {
	e.hub.Broadcast(ctx, msg)
	return msg
}
