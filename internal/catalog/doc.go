// Package catalog implements the metadata client for the streaming catalog.
//
// The [Client] interface is the narrow surface the sync engine consumes;
// [HTTPClient] talks JSON over HTTP to a catalog API, authenticating with
// OAuth2 client credentials when configured and pacing requests with a rate
// limiter so bulk syncs stay inside the catalog's quota.
package catalog
