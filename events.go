// events.go: lifecycle transition events
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"time"

	"github.com/agilira/go-timecache"
)

// LifecycleEvent describes one plugin state transition.
type LifecycleEvent struct {
	PluginID  string         `json:"plugin_id"`
	Reference string         `json:"reference"`
	From      LifecycleState `json:"from"`
	To        LifecycleState `json:"to"`
	Timestamp time.Time      `json:"timestamp"`
	// Err is set when the transition was caused by a failure, such as a
	// hook that could not be created or refused to activate.
	Err error `json:"-"`
}

// LifecycleEventHandler receives lifecycle events. Handlers run
// synchronously on the goroutine that drove the transition.
type LifecycleEventHandler func(event LifecycleEvent)

func newLifecycleEvent(pluginID, reference string, from, to LifecycleState, err error) LifecycleEvent {
	return LifecycleEvent{
		PluginID:  pluginID,
		Reference: reference,
		From:      from,
		To:        to,
		Timestamp: timecache.CachedTime(),
		Err:       err,
	}
}
