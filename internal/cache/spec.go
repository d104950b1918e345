package cache

import (
	"log/slog"

	"github.com/thiagokokada/ccview-go/internal/configspec"
)

// SyncSpec compares text with the config spec saved for viewRoot. When they
// differ the listings of viewRoot are dropped and text becomes the saved spec.
func (c *ListingCache) SyncSpec(viewRoot, text string) (changed bool, err error) {
	current, err := configspec.ParseString(viewRoot, text)
	if err != nil {
		return false, err
	}
	saved, ok, err := c.SavedSpec(viewRoot)
	if err != nil {
		return false, err
	}
	if ok {
		previous, err := configspec.ParseString(viewRoot, saved)
		if err == nil && previous.Equal(current) {
			return false, nil
		}
		if err != nil {
			slog.Debug("saved config spec no longer parses", slog.Any("error", err))
		}
	}

	slog.Info("config spec changed, clearing cache", slog.String("view", viewRoot))
	if err := c.ClearView(viewRoot); err != nil {
		return false, err
	}
	if err := c.SaveSpec(viewRoot, text); err != nil {
		return false, err
	}
	return true, nil
}
