package cfg

import (
	"github.com/fsnotify/fsnotify"
)

// Watcher sends a re-parsed profile whenever the profile on disk is
// updated. Profiles that fail to parse or validate are reported on
// Errors and otherwise ignored, so a half-saved edit never tears down
// a running watcher.
type Watcher struct {
	Updates chan Profile
	Errors  chan error

	path    string
	watcher *fsnotify.Watcher
}

// Watch starts watching the profile at the given path.
func Watch(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err = fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w := &Watcher{
		Updates: make(chan Profile, 4),
		Errors:  make(chan error, 4),
		path:    path,
		watcher: fsw,
	}
	go w.run()
	return w, nil
}

// Close stops the watcher. Updates and Errors are closed once the
// watch goroutine has drained.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) run() {
	defer close(w.Updates)
	defer close(w.Errors)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Editors that replace the file show up as Create; plain
			// rewrites as Write.
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
				continue
			}
			profile, err := FromFile(w.path)
			if err != nil {
				select {
				case w.Errors <- err:
				default:
				}
				continue
			}
			select {
			case w.Updates <- profile:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}
