// Package audit records who did what to which transfer.
//
// Entries land in the audit_logs table of the local database. Transfer
// lifecycle events reach the trail through Writer.Sink, registered on the
// event broadcaster; logins are recorded by the API directly. Writes are
// asynchronous and best-effort, so a slow disk never delays a transfer.
package audit
