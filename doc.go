// Package spanlite is a client runtime for a remote transactional SQL
// database.
/*
A Driver keeps a pool of server sessions (or one multiplexed session) and
runs units of work in transactions. A unit of work is retried from scratch
with a new transaction when the server aborts the transaction, when a
session is lost, or when any request or result stream issued by it fails
with a retryable error, until the transaction timeout would elapse.

Results of queries are streamed and transparently resumed after transient
stream failures without losing or duplicating rows.
*/
package spanlite
