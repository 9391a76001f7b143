package session

import "errors"

// ErrConnectionClosed resolves outstanding calls when a session shuts down.
var ErrConnectionClosed = errors.New("connection closed")

// ErrCallTimeout is returned when no reply arrives before the call deadline.
var ErrCallTimeout = errors.New("timeout waiting for call result")

// ErrHeartbeatTimeout is the close reason when a station goes silent beyond
// the tolerance window.
var ErrHeartbeatTimeout = errors.New("heartbeat timeout")

// ErrSuperseded is the close reason when a newer connection for the same
// station displaces this one.
var ErrSuperseded = errors.New("superseded by newer connection")

// ErrNotActive is returned by SendCall on a session that is not active.
var ErrNotActive = errors.New("session not active")
