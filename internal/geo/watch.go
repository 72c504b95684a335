package geo

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// debounce collapses the burst of write events an atomic file replace
// produces into a single reload.
const debounce = 500 * time.Millisecond

// Watch reloads the network whenever its file changes, until the context
// is cancelled. Errors during reload keep the previous network in place.
func (n *Network) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(n.path); err != nil {
		return err
	}
	log.WithField("path", n.path).Info("watching network file for changes")

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("network watcher error")
		case <-reload:
			if err := n.Reload(); err != nil {
				log.WithError(err).Error("network reload failed, keeping previous network")
				continue
			}
			// Editors that replace the file break the watch; re-add.
			_ = watcher.Add(n.path)
		}
	}
}
