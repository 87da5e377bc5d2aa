// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a small workflow for browsing recommendations:
//  1. [LoadingView] : Run the recommendation pipeline, streaming pipeline events as status text
//  2. [TrackListView] : Browse the recommended tracks
//  3. [ErrorView] : Display a failure with a retry affordance
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Pipeline progress flows through the recommendation engine's event broker into a channel,
// providing non-blocking status reporting while the build runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, o, r, q) with contextual help
// displayed via charmbracelet/bubbles/help.
package ui
