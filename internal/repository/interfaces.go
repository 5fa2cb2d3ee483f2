package repository

import "context"

// Tx runs fn inside one database transaction. The transaction is carried in
// the context handed to fn; store calls made with that context join it. The
// services use this to make token consumption, guard checks, status writes,
// and outbox enqueues one atomic unit of work.
//
// The store interfaces themselves live with their consumers: each domain
// package declares the persistence surface it needs, and internal/sqlite
// implements them.
type Tx interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
