// Package library writes downloaded tracks to the local music library:
// streaming audio to disk, embedding ID3 metadata, and generating m3u
// playlist files alongside the tracks.
package library
