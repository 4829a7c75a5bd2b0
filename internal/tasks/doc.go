// Package tasks orchestrates song resolution on top of the cache, the file store and the lyrics source.
//
// # Resolution
//
// [Resolver.Resolve] assembles a [models.Song] for a file id or name:
//
//  1. Look the file up in the cache by id (all alias fields), then by name
//  2. For a cached record, fetch missing lyrics and missing audio features concurrently
//     and write each back with a field-scoped update
//  3. For an unknown file, read embedded tags first, fall back to guessing from the
//     file name, look up lyrics and store the result if it carries anything
//
// Cache, lyrics and metadata failures are logged and absorbed. Cached lyrics are never
// replaced and stored audio features are never overwritten.
//
// # Cache Warming
//
// [Warmer.Warm] lists audio files and resolves each one through a rate limited worker pool,
// reporting [ProgressUpdate] values on a non-blocking channel and recording the pass as a
// [models.ResolveRun] when a [RunRecorder] is configured.
package tasks
