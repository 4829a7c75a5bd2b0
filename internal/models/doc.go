// Package models defines the song record cached by drivetune and the value types that travel with it.
//
//   - [Song] : a cached record keyed by the storage provider's file identifier
//   - [Lyrics] : either empty or plain text; legacy stored shapes are folded in by [NormalizeLyrics]
//   - [AudioFeatures] : technical properties read from the file's leading bytes
//   - [FileInfo] : what the storage provider reports about a file
//
// Lookups accept the alias field names listed in [FileIDAliases] and [FileNameAliases] so records
// written by older clients are still found.
package models
