// Package provenance keeps an ownership graph of executed transfers in Neo4j.
//
// The ledger is the source of truth for who owns an asset. The graph is a
// derived view fed by the event broadcaster: every TransferExecuted event
// adds a TRANSFERRED edge between two identities and moves the asset's OWNS
// edge to the new owner. Edges are merged on transfer ID, so a replayed
// event leaves the graph unchanged.
//
// Queries such as "every asset that passed through Brad" or "the chain of
// owners of asset101" then become single Cypher traversals.
//
// Usage:
//
//	client, err := provenance.NewNeo4jClient(ctx, provenance.Options{URI: "bolt://localhost:7687"})
//	store := provenance.NewStore(client)
//	_ = store.EnsureSchema(ctx)
//	broadcaster.AddSink(store.Sink())
package provenance
