// Package contentstore adapts a git repository to the narrow surface the
// indexer needs: resolve HEAD, read commits, diff trees, walk history in
// topological order, read blobs and answer ancestry questions.
//
// The underlying go-git repository is a shared mutable handle. Store owns it
// behind a mutex that is held for the duration of each call (or a short chain
// of dependent calls) and never across a whole history walk, so point reads
// from other goroutines interleave with long maintenance runs.
package contentstore
