// Package source watches a local directory for files dropped by a
// co-resident application and dispatches each one as either an entry (fed
// through the validator pipeline) or a command (peer/subscription/log
// control). Grounded on node/source.cpp's directory-intake loop: open with
// delete-on-close semantics, read up to the largest possible entry,
// classify by size, overwrite before the handle closes so no trace of the
// plaintext content survives on disk.
package source

import (
	"crypto/rand"
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/fsnotify/fsnotify"
	luxlog "github.com/luxfi/log"

	raddilog "github.com/raddi-network/raddi/log"
	"github.com/raddi-network/raddi/proof"
	"github.com/raddi-network/raddi/raddi"
	"github.com/raddi-network/raddi/validator"
)

// isSharingViolation reports whether err represents another process
// momentarily holding the file (e.g. still being written), the POSIX
// analogue of the original's ERROR_SHARING_VIOLATION — a transient
// condition the caller should retry rather than treat as a failure.
func isSharingViolation(err error) bool {
	return errors.Is(err, syscall.ETXTBSY) || errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EAGAIN)
}

// MaxFileSize bounds what is read from a single intake file: header plus
// the largest possible content plus the largest possible proof.
const MaxFileSize = raddi.HeaderSize + raddi.MaxContentSize + 1 + proof.MaxSize

// EntryHandler processes a payload classified as an entry (see
// validator.IsRequest) read from the source directory.
type EntryHandler func(payload []byte) (validator.Outcome, error)

// CommandHandler processes a decoded control-channel command.
type CommandHandler func(cmd raddi.Command) error

// Watcher watches Dir for created files and dispatches their contents.
type Watcher struct {
	dir string
	fsw *fsnotify.Watcher
	log luxlog.Logger

	onEntry   EntryHandler
	onCommand CommandHandler

	// created records whether Dir was created by this Watcher (a fallback
	// temp directory, mirroring the original's behavior when no explicit
	// path is configured) and should be removed on Close.
	created bool
}

// New opens (creating if necessary) dir and begins watching it for files.
// If dir is empty, a process-local temp directory is created instead,
// matching the original's fallback to "%TEMP%/RADDI.NET.<nonce>/".
func New(dir string, onEntry EntryHandler, onCommand CommandHandler, logger luxlog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = raddilog.NewNoOpLogger()
	}

	created := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "raddi-source-")
		if err != nil {
			return nil, err
		}
		dir = tmp
		created = true
	} else if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		dir:       dir,
		fsw:       fsw,
		log:       logger,
		onEntry:   onEntry,
		onCommand: onCommand,
		created:   created,
	}, nil
}

// Dir returns the directory being watched.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close stops watching and, if the directory was a temp fallback this
// Watcher created, removes it.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	if w.created {
		os.RemoveAll(w.dir)
	}
	return err
}

// Run drains filesystem events until the watcher is closed or stop is
// closed, processing each created file in turn. A sharing violation
// (isSharingViolation) re-queues the same path for the next event loop
// pass rather than dropping it; a file that disappeared before it could be
// opened is silently ignored (another worker, or the app itself, got there
// first).
func (w *Watcher) Run(stop <-chan struct{}) error {
	var requeue []string
	for {
		for _, name := range requeue {
			w.process(name)
		}
		requeue = requeue[:0]

		select {
		case <-stop:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.process(ev.Name) {
				requeue = append(requeue, ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("source directory watch error", "error", err)
		}
	}
}

// process reads one file, dispatches it, and destroys its content before
// releasing the handle. It returns false only on a transient sharing
// violation, signaling the caller to retry later.
func (w *Watcher) process(name string) bool {
	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true
		}
		if isSharingViolation(err) {
			return false
		}
		w.log.Error("source directory open failed", "error", err)
		return true
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return true
	}

	size := info.Size()
	if size > MaxFileSize {
		size = MaxFileSize
	}
	message := make([]byte, size)
	n, err := io.ReadFull(f, message)
	if err != nil && err != io.ErrUnexpectedEOF {
		w.log.Error("source directory read failed", "error", err)
	}
	message = message[:n]

	w.dispatch(message)
	w.destroy(f, n)

	os.Remove(name)
	return true
}

// dispatch classifies message by size — the same threshold the wire
// protocol uses to distinguish a request from an entry — and routes it to
// the entry or command handler.
func (w *Watcher) dispatch(message []byte) {
	switch {
	case len(message) >= validator.MinEntrySize:
		if w.onEntry == nil {
			return
		}
		if _, err := w.onEntry(message); err != nil {
			w.log.Error("source entry rejected", "error", err)
		}

	case len(message) >= raddi.MinCommandSize:
		cmd, ok := raddi.DecodeCommand(message)
		if !ok {
			w.log.Warn("source command malformed")
			return
		}
		if w.onCommand == nil {
			return
		}
		if err := w.onCommand(cmd); err != nil {
			w.log.Error("source command failed", "error", err)
		}

	default:
		w.log.Debug("source file too short to be entry or command")
	}
}

// destroy overwrites a file's content with random bytes before it is
// removed, so no trace of the plaintext remains in the filesystem journal
// or cache once the handle closes — the anti-forensics step the original
// performs in two passes (actual size, then padded to the maximum).
func (w *Watcher) destroy(f *os.File, n int) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return
	}
	f.Seek(0, io.SeekStart)
	f.Write(buf)

	pad := make([]byte, MaxFileSize)
	rand.Read(pad)
	f.Seek(0, io.SeekStart)
	f.Write(pad)
	f.Sync()
}
