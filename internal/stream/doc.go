// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream builds one assistant message from a sequence of events.
//
// Reduce is a pure function: it takes the current State and one event and
// returns the next State plus an Effect telling the caller what to do with
// it (write it back, finalize, or nothing). It never touches the network or
// the session store, so it can be tested with plain event slices.
//
// The state always holds the full concatenated content. Once a done or
// error event has been applied the state is final and every later event is
// ignored.
//
// # Usage
//
//	st := stream.NewState(sessionID)
//	for _, ev := range events {
//	    var eff stream.Effect
//	    st, eff, err = stream.Reduce(st, ev)
//	    ...
//	}
package stream
