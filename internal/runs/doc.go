// Package runs persists transcoding run history in SQLite.
//
// A run is one upload processed into an HLS rendition set. Each run owns a
// row per ladder variant tracking encode progress. The store applies
// embedded migrations at open time and throttles per-variant progress
// writes so a chatty encoder does not hammer the database.
package runs
