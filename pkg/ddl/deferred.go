// SPDX-License-Identifier: Apache-2.0

package ddl

import (
	"context"
	"fmt"
)

// deferredStatement is one queued DDL statement, deduplicated by id the way
// the teacher's Coordinator deduplicates DBActions by ID: re-queuing the
// same id moves it to the end instead of running it twice.
type deferredStatement struct {
	id  string
	sql string
	run func(context.Context) error
}

// DeferredQueue is the DDL layer's deferred-SQL queue (spec.md §3, §4.3):
// foreign-key constraints and similar statements queued until every
// referenced table exists, drained in insertion order by
// Session.ExecuteDeferred.
type DeferredQueue struct {
	items map[string]deferredStatement
	order []string
}

func NewDeferredQueue() *DeferredQueue {
	return &DeferredQueue{items: make(map[string]deferredStatement)}
}

// Add queues a statement. If id was already queued, it is moved to the end
// of the queue rather than duplicated.
func (q *DeferredQueue) Add(id, sql string, run func(context.Context) error) {
	if _, exists := q.items[id]; exists {
		q.order = removeID(q.order, id)
	}
	q.items[id] = deferredStatement{id: id, sql: sql, run: run}
	q.order = append(q.order, id)
}

// SQL returns the queued SQL statements in insertion order, for
// logging/debugging without executing them.
func (q *DeferredQueue) SQL() []string {
	out := make([]string, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.items[id].sql)
	}
	return out
}

// Len reports how many statements are currently queued.
func (q *DeferredQueue) Len() int { return len(q.order) }

// Run drains the queue, executing each statement in insertion order. The
// queue is empty again on return, whether or not an error occurred midway.
func (q *DeferredQueue) Run(ctx context.Context) error {
	order := q.order
	items := q.items
	q.order = nil
	q.items = make(map[string]deferredStatement)

	for _, id := range order {
		stmt := items[id]
		if err := stmt.run(ctx); err != nil {
			return fmt.Errorf("failed to execute deferred statement %q: %w", id, err)
		}
	}
	return nil
}

func removeID(order []string, id string) []string {
	out := order[:0:0]
	for _, o := range order {
		if o != id {
			out = append(out, o)
		}
	}
	return out
}
