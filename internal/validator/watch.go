// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package validator

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the cache whenever a watched file under Root is created,
// written, removed, or renamed. It returns once the watcher is installed;
// events are handled in a goroutine until ctx is done. The watcher can only
// force extra comparisons, never skip one.
func (v *Validator) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := v.addTree(watcher, v.opts.Root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch source tree: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				v.handleEvent(watcher, event)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Dropped events mean we may have missed a change.
				v.opts.Logger.Warn("file watcher error; invalidating cache", "error", err)
				v.Invalidate()
			}
		}
	}()

	return nil
}

func (v *Validator) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := v.addTree(watcher, event.Name); err != nil {
				v.opts.Logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			// A directory may arrive already populated (e.g. a rename).
			v.Invalidate()
			return
		}
	}

	if v.watched(event.Name) {
		v.opts.Logger.Debug("source change detected; invalidating cache", "path", event.Name, "op", event.Op.String())
		v.Invalidate()
	}
}

func (v *Validator) watched(path string) bool {
	if !slices.Contains(v.opts.Extensions, filepath.Ext(path)) {
		return false
	}
	rel, err := filepath.Rel(v.opts.Root, path)
	if err != nil {
		return true
	}
	return !v.opts.Exclude.Match(path, filepath.ToSlash(rel))
}

// addTree adds dir and every non-excluded subdirectory to the watcher.
func (v *Validator) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != v.opts.Root {
			if rel, err := filepath.Rel(v.opts.Root, path); err == nil && v.opts.Exclude.Match(path, filepath.ToSlash(rel)) {
				return filepath.SkipDir
			}
		}
		return watcher.Add(path)
	})
}
