// Package watcher reports changes to a repository's refs.
//
// A RefWatcher observes HEAD, packed-refs and every file under refs/ in the
// git directory. Lock files written by git during an update are ignored.
// Events are debounced so that a burst from one git operation (a commit, a
// rebase, a fetch) arrives as a single batch.
//
// fsnotify is used where available; otherwise the same files are polled.
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, gitDir) }()
//	for batch := range w.Events() {
//	    // refs moved; bring the cache up to date
//	}
package watcher
