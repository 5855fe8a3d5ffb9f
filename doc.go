/*
Package livetree provides a hierarchical, realtime key-value store
that needs no server. Values live in one tree addressed by
slash-separated paths, and every change is pushed to the listeners
subscribed to the affected paths. The whole tree is persisted as a
single snapshot record, in anything that can store bytes under a
name, and replicated to the other instances sharing a Transport.

Uses

- Chat and live-support widgets that want realtime-database semantics
(subscribe, set, update, push, remove) without running a database

- Presence and typing indicators shared between processes on one
host, or between hosts through a websocket hub

- Tests and demos of code written against a realtime database, with
an in-memory Store standing in for the networked one

Data model

A Value is Null, String, Number, Bool, or a Node mapping keys to
child Values. Reading a path that does not exist yields Null. Writing
below a scalar replaces the scalar with a Node. Push stores a value
under a new entry ID; entry IDs sort in creation order.

Every mutation builds a new root that shares all untouched subtrees
with the old one, so a tree returned by Get stays valid, and
unchanged, after later writes. Diff uses the sharing to compare two
versions of a store in proportion to what changed.

Notifications

A Listener is called once with the current value when it subscribes,
then after each mutation that may have changed its path: writes to
the path itself or below it always notify, writes above it notify
only if the value at the path changed. The goroutine that subscribes
or mutates calls the affected listeners before it returns, with no
lock held, so a listener may read, write, or cancel subscriptions.
Each listener sees values in mutation order and is never called
concurrently with itself; a value for a listener that is already
running is delivered when it returns.

Replication

After persisting, a Store publishes its whole tree to the Transport.
Other instances adopt the tree as received and re-evaluate their
subscriptions; the last snapshot to arrive wins. Bus connects stores
in one process; package transport/ws connects processes through a
Hub.

Persistence

Persist implementations are provided for memory, files
(persist/file) and S3 (persist/s3). A mutation whose snapshot cannot
be stored still applies in memory; its Ack fails with an error
matching ErrTransient, and the next successful write persists both.
*/
package livetree
