package tagyaml

import (
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// NoFileError denotes calling a file operation with an empty path.
type NoFileError struct{}

// Error returns the formatted file error.
func (fnfe NoFileError) Error() string {
	return fmt.Sprintf("No Document File")
}

// FileReadError denotes failing when reading a document file.
type FileReadError struct {
	err error
}

// Error returns the formatted file error.
func (fre FileReadError) Error() string {
	return fmt.Sprintf("Reading Document File Failed: %v", fre.err)
}

// Unwrap returns the underlying read error.
func (fre FileReadError) Unwrap() error { return fre.err }

// WriteFile serializes v and writes it to the named file, creating
// parent directories as needed.
func WriteFile(name string, v any) error { return c.WriteFile(name, v) }

func (r *Registry) WriteFile(name string, v any) error {
	if name == "" {
		return NoFileError{}
	}

	b, err := r.Marshal(v)
	if err != nil {
		return err
	}

	if dir := path.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(name, b, 0644)
}

// ReadFile parses the named file as a YAML document into out.
func ReadFile(name string, out any) error { return c.ReadFile(name, out) }

func (r *Registry) ReadFile(name string, out any) error {
	if name == "" {
		return NoFileError{}
	}

	b, err := os.ReadFile(name)
	if err != nil {
		return FileReadError{err}
	}
	return r.Unmarshal(b, out)
}

// WatchFile starts watching a document file for changes, invoking
// onChange after every write. The watch ends when the file is removed
// or the watcher fails; failures are reported through the logger.
func WatchFile(name string, onChange func()) { c.WatchFile(name, onChange) }

func (r *Registry) WatchFile(name string, onChange func()) {
	initWG := sync.WaitGroup{}
	initWG.Add(1)
	go func() {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			r.logger(fmt.Sprintf("failed to create watcher: %s", err))
			initWG.Done()
			return
		}
		defer watcher.Close()

		eventsWG := sync.WaitGroup{}
		eventsWG.Add(1)
		go func() {
			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok { // 'Events' channel is closed
						eventsWG.Done()
						return
					}

					if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
						onChange()
					} else if event.Has(fsnotify.Remove) {
						eventsWG.Done()
						return
					}

				case err, ok := <-watcher.Errors:
					if ok { // 'Errors' channel is not closed
						r.logger(fmt.Sprintf("watcher error: %s", err))
					}
					eventsWG.Done()
					return
				}
			}
		}()
		watcher.Add(name)
		initWG.Done()   // done initializing the watch in this go routine, so the parent routine can move on...
		eventsWG.Wait() // now, wait for event loop to end in this go-routine...
	}()
	initWG.Wait() // make sure that the go routine above fully ended before returning
}
