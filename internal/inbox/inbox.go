// Package inbox watches directories with fsnotify and submits every file
// dropped into them as a single-file run.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/fileid"
	"github.com/hyperjump/idscan/internal/models"
)

// SubmittedSuffix is appended to a file once it has been submitted.
const SubmittedSuffix = ".submitted"

const defaultDebounce = 400 * time.Millisecond

// Submitter accepts submissions.
type Submitter interface {
	Submit(ctx context.Context, docType string, files []models.SubmittedFile) (string, error)
}

// Inbox watches directories and submits new files.
type Inbox struct {
	dirs       []string
	extensions []string
	docType    string
	debounce   time.Duration
	submitter  Submitter
	logger     *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timers   map[string]*time.Timer
	inflight map[string]bool
	ctx      context.Context
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the inbox logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithDebounce sets how long a file must stay quiet before it is submitted.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// WithExtensions restricts submissions to the given extensions (empty = all).
func WithExtensions(exts []string) Option {
	return func(in *Inbox) { in.extensions = exts }
}

// New returns an inbox over dirs that submits files with docType.
func New(dirs []string, docType string, submitter Submitter, opts ...Option) *Inbox {
	in := &Inbox{
		dirs:      dirs,
		docType:   docType,
		debounce:  defaultDebounce,
		submitter: submitter,
		logger:    zap.NewNop(),
		timers:    make(map[string]*time.Timer),
		inflight:  make(map[string]bool),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Start creates missing directories, submits files already present, and
// watches for new ones until ctx is done or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range in.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			w.Close()
			return err
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	in.mu.Lock()
	in.watcher = w
	in.ctx = ctx
	in.mu.Unlock()

	in.logger.Info("inbox watching", zap.Strings("dirs", in.dirs), zap.String("doc_type", in.docType))
	for _, dir := range in.dirs {
		in.syncDirectory(dir)
	}
	go in.run(ctx)
	return nil
}

// Stop stops watching and cancels pending submissions.
func (in *Inbox) Stop() {
	in.stopOnce.Do(func() {
		close(in.done)
		in.mu.Lock()
		for p, t := range in.timers {
			t.Stop()
			delete(in.timers, p)
		}
		w := in.watcher
		in.mu.Unlock()
		if w != nil {
			_ = w.Close()
		}
	})
}

func (in *Inbox) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
				if in.accepts(ev.Name) {
					in.schedule(ev.Name)
				}
			}
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			in.logger.Debug("inbox watcher error", zap.Error(err))
		}
	}
}

func (in *Inbox) syncDirectory(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		in.logger.Warn("failed to list inbox", zap.String("dir", dir), zap.Error(err))
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if !e.IsDir() && in.accepts(path) {
			in.schedule(path)
		}
	}
}

func (in *Inbox) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, SubmittedSuffix) {
		return false
	}
	if len(in.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range in.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.timers[path]; ok {
		t.Stop()
	}
	in.timers[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.timers, path)
		ctx := in.ctx
		in.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		if _, err := in.Process(ctx, path); err != nil {
			in.logger.Warn("inbox submission failed", zap.String("path", path), zap.Error(err))
		}
	})
}

// Process submits the file at path and renames it with SubmittedSuffix.
// It returns the run ID; a file already being processed yields "" and no error.
func (in *Inbox) Process(ctx context.Context, path string) (string, error) {
	key := fileid.PathID(path)
	in.mu.Lock()
	if in.inflight[key] {
		in.mu.Unlock()
		return "", nil
	}
	in.inflight[key] = true
	in.mu.Unlock()
	defer func() {
		in.mu.Lock()
		delete(in.inflight, key)
		in.mu.Unlock()
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	files := []models.SubmittedFile{{Key: "file_000", Filename: filepath.Base(path), Data: data}}
	runID, err := in.submitter.Submit(ctx, in.docType, files)
	if err != nil {
		return "", fmt.Errorf("failed to submit %s: %w", path, err)
	}
	if err := os.Rename(path, path+SubmittedSuffix); err != nil {
		return runID, fmt.Errorf("submitted %s as %s but failed to rename: %w", path, runID, err)
	}
	in.logger.Info("inbox file submitted", zap.String("path", path), zap.String("run_id", runID))
	return runID, nil
}
