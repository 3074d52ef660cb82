// Package control implements the gateway's Control Client.
//
// # Overview
//
// The Control Client maintains a single persistent websocket connection to
// the backend's control channel and exposes four operations: ListModels,
// LoadModel, UnloadModel, and Health. Callers interact with the Session
// interface; Client is the concrete websocket-backed implementation.
//
// # Connection lifecycle
//
// The connection is established lazily, on the first call that needs it,
// rather than at startup. Establishing a connection includes one liveness
// probe (a list_loaded call) before the connection is considered usable. If
// the probe or the dial fails, the client retries up to three times with a
// two-second gap before returning an UnavailableError. Concurrent callers
// that arrive while a connection attempt is already in flight wait on that
// attempt instead of starting their own.
//
// Any call that hits an I/O or protocol-level failure invalidates the
// connection immediately, so the next call reconnects from scratch rather
// than continuing to use a connection in an unknown state.
//
// # Concurrency
//
// LoadModel and UnloadModel are serialized against each other: the backend
// supports at most one outstanding model mutation at a time. ListModels and
// Health are not part of that serialization, but every call shares the same
// underlying connection and connect logic, and request/response exchanges
// on that connection run one at a time; a ListModels or Health call
// therefore waits for any load or unload exchange already in flight.
package control
