// Package graph provides an identifier-stable, transactional graph store and
// an incremental connected-components tracker built on top of it.
//
// Store holds directed graph topology in dense arenas. Node and edge ids are
// small integers that never change meaning while the element is in use, so
// consumers can keep their own arrays indexed by id. Removed ids go to a FIFO
// free list and are handed out again later.
//
// Features:
//   - Batched mutation inside transactions (Store.Begin, Store.Update)
//   - Listener notifications before and after every transaction
//   - Multi-element groups: nodes or edges merged under a head id
//   - Edge contraction, single and batched, with deterministic survivors
//   - Deep copy with change replay (CloneFrom) and diffs (DiffTo)
//
// Tracker subscribes to a Store and keeps the partition into connected
// components current after every commit. It reports what changed as an
// ordered slice of ComponentEvent values, in this order:
//
//  1. ComponentsWillMerge
//  2. ComponentWillBeRemoved
//  3. ComponentAdded
//  4. ComponentSplit
//  5. NodeAddedToComponent, EdgeAddedToComponent
//  6. NodeRemovedFromComponent, EdgeRemovedFromComponent
//
// Within each group events are ordered by ascending component id.
//
// Contract violations, such as removing a node that is not in use, panic with
// an error that wraps one of the sentinel errors in this package. They are
// caller bugs, not data conditions, and are not meant to be recovered from.
//
// Example:
//
//	store := graph.NewStore()
//	tracker := graph.NewTracker(store)
//	defer tracker.Close()
//
//	tracker.Subscribe(func(events []graph.ComponentEvent) {
//		for _, ev := range events {
//			fmt.Println(ev)
//		}
//	})
//
//	store.Update(func(tx *graph.Tx) {
//		a, b := tx.AddNode(), tx.AddNode()
//		tx.AddEdge(a, b)
//	})
//
//	fmt.Println(tracker.NumComponents()) // 1
//
// Concurrency: one goroutine writes; any number may read. Readers of the Store
// never observe a half-applied transaction, and Tracker queries block while an
// update is being computed.
package graph
