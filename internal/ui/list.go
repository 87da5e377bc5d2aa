package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/muse/internal/services"
)

var _ list.Item = trackItem{}

// trackItem wraps [services.RecommendedTrack] to implement [list.Item].
type trackItem struct {
	track services.RecommendedTrack
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string       { return i.track.Name }
func (i trackItem) Description() string {
	desc := i.track.Artists
	if i.track.PreviewURL != "" {
		desc += " • preview available"
	}
	return desc
}
