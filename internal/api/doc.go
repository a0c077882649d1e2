// Package api implements the HTTP REST API and WebSocket event stream for
// the asset transfer service.
//
// This package provides:
//   - Public ledger reads: asset record, history and provenance chain
//   - Login issuing JWT bearer tokens
//   - Protected transfer endpoints: initiate, approve, reject, pending, status
//   - Admin endpoints over all transfers, the audit trail and user accounts
//   - A WebSocket hub that receives lifecycle events as an events.Sink
//
// # Error Mapping
//
// Domain errors from the transfer engine and ledger map to HTTP statuses:
// not found 404, already exists 409, unauthorized 403, invalid owner or
// request 400, ledger commit failure 502. Missing or invalid tokens get 401.
//
// # Identity
//
// The token subject is the username, and that is the identity the engine
// records as initiator, signer and owner. Nothing in a request body can
// override it.
package api
