// Package repositories implements the song cache behind [SongStore].
//
// Two backends are provided:
//   - [SQLiteSongStore] : songs table with a UNIQUE index on file_id; writes are INSERT ... ON CONFLICT
//   - [MongoSongStore] : document collection read through alias field names and legacy lyrics shapes
//
// Both treat "no match" as (nil, nil) and refuse to overwrite audio features once set.
// [OpenSongStore] selects the backend from configuration; an empty driver disables caching.
//
// [RunRepository] records cache warm runs in SQLite.
package repositories
