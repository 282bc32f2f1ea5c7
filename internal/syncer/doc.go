// Package syncer orchestrates one playlist sync run: fetching the track
// listing from the catalog, downloading audio into the library, tagging
// files, and writing the playlist index. It implements [jobs.Runner].
package syncer
