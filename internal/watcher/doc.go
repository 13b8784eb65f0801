// Package watcher turns file-system activity under a root directory into
// debounced batches of create, modify, delete and rename events.
//
// fsnotify is the primary source; when it cannot be initialised (some
// network mounts and container volumes) the watcher falls back to
// periodic polling. Rapid sequences of events for one path are coalesced
// inside the debounce window, and a Filter keeps ineligible files and
// excluded directories out of the stream.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.Options{Filter: elig})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, root) }()
//	for batch := range w.Events() {
//	    _ = indexer.HandleEvents(ctx, batch)
//	}
package watcher
