package utils

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/postly/postly/config"
	"github.com/postly/postly/models"
)

// StartOrphanSweeper launches a background goroutine that periodically
// removes upload files no user or post references. Per-request cleanup
// already deletes uploads of failed requests; the sweeper covers files
// stranded by a crash between upload and response. Best-effort, failures
// are logged only. The returned stop function terminates the goroutine
// and is safe to call more than once.
func StartOrphanSweeper(db *gorm.DB, interval, grace time.Duration) func() {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if grace <= 0 {
		grace = time.Hour
	}
	done := make(chan struct{})
	go func() {
		// Tick first, don't sweep at startup
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sweepOrphans(db, grace)
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func sweepOrphans(db *gorm.DB, grace time.Duration) {
	dir := config.Get().UploadDir
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-grace)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if referenced, err := imageReferenced(db, path); err != nil || referenced {
			continue
		}
		if err := os.Remove(path); err != nil {
			if Sugar != nil {
				Sugar.Warnf("orphan sweep failed to remove %s: %v", path, err)
			}
		} else if Sugar != nil {
			Sugar.Infof("orphan sweep removed %s", path)
		}
	}
}

func imageReferenced(db *gorm.DB, path string) (bool, error) {
	var count int64
	if err := db.Model(&models.Post{}).Where("image = ?", path).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := db.Model(&models.User{}).Where("image = ?", path).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
