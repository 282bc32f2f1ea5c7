// Package ui implements an interactive job monitor using bubbletea's Elm architecture.
//
// The monitor connects to a running server's event stream and renders every
// job with its live status and progress. The first event is always a
// snapshot of the full job table; subsequent events patch it in place.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Stream events flow through a channel from the [StreamClient], providing non-blocking updates while the view stays responsive.
//
// Keyboard navigation uses vim-style bindings (j/k, c, x, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
