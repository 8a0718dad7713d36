// Package digest reduces view content to a cheap change-detection hash.
//
// Content is first serialized into a deterministic string, then folded with
// a rolling 32-bit hash:
//
//   - [Canonical] and [CanonicalJSON]: JSON values with object keys sorted
//   - [VisibleText]: visible text and attribute values of an HTML partial
//   - [Hash]: multiply-shift-accumulate over UTF-16 code units, wrapped to int32
//
// The hash is not cryptographic and carries no collision guarantee. It is
// only used to decide whether a region needs to be re-published.
package digest
