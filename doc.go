// Package jsonkv is a hierarchical key-value store kept in memory and backed
// by a JSON document on disk.
//
// A [Provider] holds the document twice: as a tree ([jsontree.Node]) and as a
// flat map from [keypath] keys such as "servers:0:host" to leaf values. Both
// views are guarded by one reader/writer lock and always agree. Mutations are
// applied in memory and persisted in the background: bursts of changes are
// coalesced, then the whole document is written to a temporary file next to
// the target and renamed over it, so readers of the file never observe a
// partial write.
//
// Write failures never propagate to the caller of a mutation, which already
// succeeded in memory. They are logged, reported to [Provider.OnWriteError]
// observers and retried once; [Provider.Flush] returns them.
package jsonkv
