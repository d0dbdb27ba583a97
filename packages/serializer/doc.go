// Package serializer converts arbitrary runtime values to and from tagged
// byte payloads.
//
// A Serializer owns an ordered list of backends: a primary backend tried
// first and an optional fallback tried when the primary fails. The backend
// that produced a payload is recorded as a tag alongside the bytes, and
// deserialization always selects the backend named by the tag rather than
// guessing. If the tagged backend is unavailable, every other registered
// backend is attempted in order before giving up.
package serializer
