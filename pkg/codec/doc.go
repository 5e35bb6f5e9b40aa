// Package codec implements the binary artifact format consumed by the search
// frontend.
//
// # Layout
//
// All integers are little-endian uint32. A string is its byte length as a
// uint32 followed by the raw bytes, with no terminator and no padding.
//
// A package record is, in order:
//
//	order, num_versions,
//	keyword_count, keyword_id[keyword_count],
//	category_count, category_id[category_count],
//	name, description, repository, homepage, documentation,
//	latest_stable_version, latest_version
//
// Absent optional strings are written with length zero, and a zero-length
// optional string decodes as absent. Present-but-empty values therefore do
// not survive a round trip.
//
// The dump artifact frames every record with its own uint32 byte length, so
// a reader can skip records or index them without decoding (see [Index]).
//
// The keywords and categories artifacts are a flat concatenation of
// (id uint32, name string) entries. There is no count and no entry framing;
// a decoder consumes entries until the input is exhausted.
//
// # Errors
//
// Decoding never panics. Short or malformed input yields a [*DecodeError]
// wrapping one of [ErrTruncated], [ErrUnexpectedEnd] or [ErrInvalidString].
package codec
