// Package manager owns inference sessions and runs the generation loop. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, GetAndTouch, expiry bookkeeping.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: Session, Chunk and GenerateRequest.
//   - errors.go: error types and helpers (IsCapacityExceeded, IsSessionNotFound, ...).
//   - admission.go: Open, which reserves a capacity slot before acquiring an engine handle.
//   - evict.go: expiry sweep (lazy on Open, periodic via Run).
//   - unload.go: Close and CloseAll.
//   - infer.go: Generate (the decode/stop state machine) and GenerateOnce.
//   - status_report.go, sanity.go: /status and backend reachability.
//   - events.go, eventpub_*.go: lifecycle event publishers (noop, memory, Redis).
//
// Lock order is Session.mu before Manager.mu. Code holding Manager.mu only
// ever TryLocks a session, and no lock is held across an engine call except
// the session's own mutex.
package manager
