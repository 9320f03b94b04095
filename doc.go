// The [blobstash] package is a client for the [BlobStash] HTTP API.
//
// # Connecting
//
// Build a client with [New] from a [connection.Config], or let
// [FromEndpointURLString], [FromEnv] and [FromConfigFile] build the config for
// you. All stores share one HTTP transport.
//
// # Document store
//
// [DB.DocStore] returns the [docstore.Client]. Documents are fetched through
// cursors that page through the server listing on demand. Every document
// fetched or written is remembered as a baseline, so a later update sends a
// JSON Patch of the changes conditioned on the document fingerprint. A
// concurrent change on the server fails the update with an error wrapping
// [ErrConflict].
//
// Queries are built with the [github.com/blobstash/blobstash.go/pkg/query]
// package and compiled to the Lua predicates the server evaluates.
//
// # Other stores
//
// [DB.KVStore], [DB.BlobStore] and [DB.FileTree] expose the versioned
// key-value store, the content-addressed blob store and the file-tree nodes
// that document attachments point to.
//
// [BlobStash]: https://github.com/tsileo/blobstash
package blobstash
