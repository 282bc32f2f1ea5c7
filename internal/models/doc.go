// Package models defines domain entities and persistence interfaces for the tunesync download service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing catalog data
//   - [Playlist] : Basic playlist metadata from the streaming catalog
//   - [PlaylistExport] : Playlist with complete track listing
//   - [Track] : Song metadata with stream URL for downloading
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Subscription] : Watched playlists the watcher re-syncs on an interval
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
