// Package stream relays remote audio files with HTTP range support.
//
// [Proxy.Stream] resolves the file's size and type, forwards an optional byte range with a
// bearer token from the token manager, and returns the upstream body unbuffered. A 401 from
// the file store triggers exactly one forced token refresh and one retry.
//
// [Proxy] also implements metadata.PrefixReader, so the metadata extractor reads file
// prefixes through the same authenticated path.
package stream
