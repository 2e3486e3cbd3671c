// Package mediacache implements the content-addressable filesystem cache
// for generated media. Assets live under flat per-kind directories with
// canonical names (content hash for audio, normalized word for images); a
// cached file is returned without any provider call, which is the
// pipeline's deduplication guarantee. A sqlite manifest alongside the
// files powers cache statistics and pruning; it is advisory and the
// filesystem remains the source of truth.
package mediacache
