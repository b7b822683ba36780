package record

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/tauraamui/dragoneye/pkg/eye/process"
	"github.com/tauraamui/dragoneye/pkg/log"
	"github.com/tauraamui/dragoneye/pkg/video/videoclip"
)

var fs = afero.NewOsFs()

const cleanupInterval = 5 * time.Minute

// DeleteOldClips returns a process which periodically removes the per day
// clip directories under persistLoc which are older than maxAgeInDays.
func DeleteOldClips(persistLoc string, maxAgeInDays int) process.Process {
	return process.NewTask(process.TaskSettings{
		Process: func(ctx context.Context) []chan interface{} {
			stopping := make(chan interface{})
			go func() {
				defer close(stopping)
				log.Info("Deleting clips older than [%d] days from [%s]", maxAgeInDays, persistLoc)
				ticker := time.NewTicker(cleanupInterval)
				defer ticker.Stop()
				for {
					deleteOldClips(persistLoc, maxAgeInDays, videoclip.Timestamp())
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
					}
				}
			}()
			return []chan interface{}{stopping}
		},
	})
}

// deleteOldClips removes every day directory whose date is more than
// maxAgeInDays before now and returns how many were removed. Entries which
// are not named after a date are left alone.
func deleteOldClips(persistLoc string, maxAgeInDays int, now time.Time) int {
	entries, err := afero.ReadDir(fs, persistLoc)
	if err != nil {
		log.Debug("Unable to read clip directory [%s]: %v", persistLoc, err)
		return 0
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	cutoff := today.AddDate(0, 0, -maxAgeInDays)
	deleted := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		day, err := time.ParseInLocation(videoclip.DATE_FORMAT, entry.Name(), now.Location())
		if err != nil || !day.Before(cutoff) {
			continue
		}
		path := filepath.Join(persistLoc, entry.Name())
		if err := fs.RemoveAll(path); err != nil {
			log.Error("Unable to delete old clips [%s]: %v", path, err)
			continue
		}
		log.Info("Deleted old clips: [%s]", path)
		deleted++
	}
	return deleted
}
