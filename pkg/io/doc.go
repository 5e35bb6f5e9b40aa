// Package io stores and loads the artifacts of a build.
//
// # Artifacts
//
// A build produces three binary blobs and a timestamp, bundled as
// [Artifacts]:
//
//   - dump: ranked package records (see package codec)
//   - keywords: keyword id to name table
//   - categories: category id to name table
//   - last_updated: RFC 2822 time of the snapshot the build used
//
// # Sinks
//
// A [Sink] publishes a complete set of artifacts. Three are provided:
//
//   - [DirSink] writes one file per artifact into a directory. Every file is
//     first written under a temporary name in the same directory and only
//     renamed into place once all of them were written, so readers never
//     see a half-written set.
//   - [RedisSink] sets one key per artifact inside a single MULTI/EXEC
//     transaction.
//   - [S3Sink] uploads one object per artifact to an S3-compatible bucket.
//
// [ReadDir] and [RedisSink.Read] load artifacts back; [Artifacts.Open]
// decodes them into an [Index] for lookups.
//
// # JSON
//
// [WriteJSON] and [ExportJSON] write decoded packages as JSON for debugging
// and for consumers that do not speak the binary format. [ReadJSON] and
// [ImportJSON] read that format back.
package io
