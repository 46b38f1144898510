// Package watcher re-indexes stored projects when their files change.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DeusData/codeindex/internal/discover"
	"github.com/DeusData/codeindex/internal/pipeline"
	"github.com/DeusData/codeindex/internal/store"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

// Source lists what has been indexed. *store.Store satisfies it.
type Source interface {
	ListProjects() ([]*store.Project, error)
	GetFileHashes(project string) (map[string]string, error)
}

// IndexFunc re-indexes one project.
type IndexFunc func(ctx context.Context, project, rootPath string) error

type fileStat struct {
	modTime time.Time
	size    int64
}

type projectState struct {
	files    map[string]fileStat
	interval time.Duration
	nextPoll time.Time
}

// Watcher polls indexed projects and calls its IndexFunc on change.
// Filesystem events only pull the next poll forward; the poll decides.
type Watcher struct {
	src      Source
	indexFn  IndexFunc
	discover discover.Options
	projects map[string]*projectState

	notify  *fsnotify.Watcher
	watched map[string]string // absolute dir -> project
}

// New creates a Watcher. opts must match the options used for indexing so
// the watched file set equals the indexed one.
func New(src Source, indexFn IndexFunc, opts pipeline.Options) *Watcher {
	return &Watcher{
		src:      src,
		indexFn:  indexFn,
		discover: *opts.DiscoverOptions(),
		projects: make(map[string]*projectState),
	}
}

// Run blocks until ctx is cancelled, polling each project when its
// adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if n, err := fsnotify.NewWatcher(); err != nil {
		slog.Debug("watcher.fsnotify", "err", err)
	} else {
		w.notify = n
		w.watched = make(map[string]string)
		events, errs = n.Events, n.Errors
		defer func() {
			n.Close()
			w.notify = nil
		}()
	}

	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.PollDue(ctx)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.wake(ev.Name)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Debug("watcher.fsnotify", "err", err)
		}
	}
}

// wake makes the project owning path due on the next tick.
func (w *Watcher) wake(path string) {
	project, ok := w.watched[filepath.Dir(path)]
	if !ok {
		project, ok = w.watched[path]
	}
	if !ok {
		return
	}
	if state, ok := w.projects[project]; ok {
		state.nextPoll = time.Time{}
	}
}

// watchDirs registers the root and every discovered directory with the
// event watcher. Removed directories drop out of fsnotify on their own.
func (w *Watcher) watchDirs(project, root string, dirs []discover.DirInfo) {
	if w.notify == nil {
		return
	}
	paths := make([]string, 0, len(dirs)+1)
	paths = append(paths, root)
	for _, d := range dirs {
		paths = append(paths, filepath.Join(root, filepath.FromSlash(d.Path)))
	}
	for _, dir := range paths {
		if _, ok := w.watched[dir]; ok {
			continue
		}
		if err := w.notify.Add(dir); err != nil {
			slog.Debug("watcher.watch", "dir", dir, "err", err)
			continue
		}
		w.watched[dir] = project
	}
}

// PollDue polls every project whose next poll time has passed.
func (w *Watcher) PollDue(ctx context.Context) {
	projects, err := w.src.ListProjects()
	if err != nil {
		slog.Warn("watcher.list_projects", "err", err)
		return
	}
	now := time.Now()
	for _, p := range projects {
		if ctx.Err() != nil {
			return
		}
		state, ok := w.projects[p.Name]
		if !ok {
			state = &projectState{}
			w.projects[p.Name] = state
		}
		if ok && now.Before(state.nextPoll) {
			continue
		}
		w.poll(ctx, p, state)
	}
}

// poll compares the project's files with the previous poll. The first poll
// compares content hashes against those stored at index time, so edits made
// while nothing was watching still trigger a re-index.
func (w *Watcher) poll(ctx context.Context, p *store.Project, state *projectState) {
	if _, err := os.Stat(p.RootPath); err != nil {
		slog.Warn("watcher.root_gone", "project", p.Name, "path", p.RootPath)
		state.nextPoll = time.Now().Add(maxInterval)
		return
	}
	res, err := discover.Discover(ctx, p.RootPath, &w.discover)
	if err != nil {
		slog.Warn("watcher.discover", "project", p.Name, "err", err)
		state.nextPoll = time.Now().Add(max(state.interval, baseInterval))
		return
	}
	w.watchDirs(p.Name, p.RootPath, res.Directories)
	files := statFiles(res.Files)
	interval := pollInterval(len(files))

	var changed bool
	if state.files == nil {
		changed = w.staleSinceIndex(p.Name, res.Files)
		slog.Debug("watcher.baseline", "project", p.Name, "files", len(files), "stale", changed)
	} else {
		changed = !statsEqual(state.files, files)
	}

	if changed {
		slog.Info("watcher.changed", "project", p.Name, "files", len(files))
		if err := w.indexFn(ctx, p.Name, p.RootPath); err != nil {
			slog.Warn("watcher.index", "project", p.Name, "err", err)
			// keep the old baseline so the next poll retries
			state.nextPoll = time.Now().Add(interval)
			return
		}
	}
	state.files = files
	state.interval = interval
	state.nextPoll = time.Now().Add(interval)
}

// staleSinceIndex reports whether the file set or any content differs from
// the hashes stored with the project's last snapshot.
func (w *Watcher) staleSinceIndex(project string, infos []discover.FileInfo) bool {
	stored, err := w.src.GetFileHashes(project)
	if err != nil {
		slog.Warn("watcher.hashes", "project", project, "err", err)
		return false
	}
	if len(stored) != len(infos) {
		return true
	}
	for _, f := range infos {
		want, ok := stored[f.RelPath]
		if !ok {
			return true
		}
		got, err := pipeline.FileHash(f.Path)
		if err != nil || got != want {
			return true
		}
	}
	return false
}

func statFiles(infos []discover.FileInfo) map[string]fileStat {
	out := make(map[string]fileStat, len(infos))
	for _, f := range infos {
		info, err := os.Stat(f.Path)
		if err != nil {
			continue
		}
		out[f.RelPath] = fileStat{modTime: info.ModTime(), size: info.Size()}
	}
	return out
}

func statsEqual(a, b map[string]fileStat) bool {
	if len(a) != len(b) {
		return false
	}
	for path, as := range a {
		bs, ok := b[path]
		if !ok || !as.modTime.Equal(bs.modTime) || as.size != bs.size {
			return false
		}
	}
	return true
}

// pollInterval is 1s plus 1s per 500 files, capped at maxInterval.
func pollInterval(fileCount int) time.Duration {
	return min(baseInterval+time.Duration(fileCount/500)*time.Second, maxInterval)
}
