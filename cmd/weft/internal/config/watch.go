package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it changes and hands the new configuration to
// onChange. Events are debounced, editors tend to fire several per save.
// The returned stop function closes the watcher.
func Watch(path string, onChange func(*Config), onError func(error)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	target, _ := filepath.Abs(path)

	go func() {
		debounce := time.NewTimer(0)
		<-debounce.C
		pending := false
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, _ := filepath.Abs(event.Name)
				if name != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = true
				debounce.Reset(100 * time.Millisecond)

			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(werr)
				}

			case <-debounce.C:
				if !pending {
					continue
				}
				pending = false
				cfg, lerr := Load(path)
				if lerr != nil {
					if onError != nil {
						onError(lerr)
					}
					continue
				}
				onChange(cfg)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
