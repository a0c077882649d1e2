// Package transfer implements the asset transfer approval workflow.
//
// A transfer moves one asset from its current owner to a new owner. It is
// created PENDING by Initiate, collects signed approvals through Approve and
// executes once the quorum policy is met: the ownership change is appended
// to the ledger and the transfer becomes EXECUTED. A PENDING transfer can
// instead be rejected by either party or expire after its TTL.
//
//	PENDING ──approve (quorum)──▶ EXECUTED
//	   │ ──reject──────────────▶ REJECTED
//	   └ ──ttl elapsed─────────▶ EXPIRED
//
// # Invariants
//
//   - At most one PENDING transfer per asset (per-asset lock plus a partial
//     unique index)
//   - A signer approves a transfer at most once; repeats are no-ops
//   - Terminal transfers are never modified
//   - Events are published once per committed transition, after the commit
//
// # Concurrency
//
// Operations on one asset are serialised by a KeyedMutex; different assets
// never share a lock. The ledger commit runs under Config.CommitTimeout so a
// slow ledger surfaces as ErrLedgerCommit instead of holding the lock.
//
// # Usage
//
//	engine := transfer.NewEngine(repo, ledgerStore, signer, broadcaster, transfer.Config{
//	    CommitTimeout:         10 * time.Second,
//	    RequireOwnerInitiator: true,
//	}, logger)
//
//	t, err := engine.Initiate(ctx, "asset101", "Brad", transfer.Actor{ID: "Tomoko"})
//	t, err = engine.Approve(ctx, "asset101", "Brad") // t.Status == EXECUTED
package transfer
