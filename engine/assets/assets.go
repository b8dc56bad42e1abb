package assets

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/framering/engine/core"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrClosed        = errors.New("asset manager already closed")
)

// Kind is the type of an asset, derived from its extension.
type Kind int

const (
	KindNone Kind = iota
	KindShader
	KindModel
	KindFrames
)

func (k Kind) String() string {
	switch k {
	case KindShader:
		return "shader"
	case KindModel:
		return "model"
	case KindFrames:
		return "frames"
	default:
		return "none"
	}
}

// KindOf maps a file name to the kind of asset it holds.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return KindShader
	case ".obj":
		return KindModel
	case ".bin":
		return KindFrames
	default:
		return KindNone
	}
}

type AssetInfo struct {
	// Name is the slash separated path relative to the asset root.
	Name     string
	Path     string
	Kind     Kind
	Modified time.Time
}

// Event reports an asset that appeared, changed or disappeared after the
// initial scan.
type Event struct {
	Name    string
	Kind    Kind
	Removed bool
}

// AssetManager indexes the files under an asset root and keeps the index
// current while the engine runs.
type AssetManager struct {
	root   string
	assets map[string]AssetInfo
	mutex  sync.RWMutex

	fsnotify *fsnotify.Watcher
	events   chan Event
	done     chan struct{}
	stopped  chan struct{}
	started  bool
	isClosed bool
}

func NewAssetManager(root string) (*AssetManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "could not resolve asset root %s", root)
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "could not create asset watcher")
	}
	return &AssetManager{
		root:     abs,
		assets:   make(map[string]AssetInfo),
		fsnotify: fsWatch,
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Initialize scans the root and starts watching it. A missing root is not
// an error: every Resolve then fails and the variants fall back.
func (am *AssetManager) Initialize() error {
	if am.isClosed {
		return ErrClosed
	}
	if !am.started {
		am.started = true
		go am.start()
	}

	if _, err := os.Stat(am.root); errors.Is(err, fs.ErrNotExist) {
		core.LogWarn("asset root %s does not exist", am.root)
		return nil
	}
	if err := am.watchRecursive(am.root); err != nil {
		return errors.Wrapf(err, "could not index assets under %s", am.root)
	}
	core.LogInfo("indexed %d assets under %s", am.Len(), am.root)
	return nil
}

func (am *AssetManager) Root() string {
	return am.root
}

// Resolve returns the path of the asset of the given kind registered under
// name, relative to the asset root.
func (am *AssetManager) Resolve(kind Kind, name string) (string, error) {
	key := filepath.ToSlash(filepath.Clean(name))
	am.mutex.RLock()
	info, ok := am.assets[key]
	am.mutex.RUnlock()
	if !ok || info.Kind != kind {
		return "", errors.Wrapf(ErrAssetNotFound, "%s %s", kind, name)
	}
	return info.Path, nil
}

func (am *AssetManager) Lookup(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[filepath.ToSlash(filepath.Clean(name))]
	return info, ok
}

func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Names lists the indexed assets of a kind in lexical order.
func (am *AssetManager) Names(kind Kind) []string {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var names []string
	for name, info := range am.assets {
		if info.Kind == kind {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Events delivers index changes. Events are dropped when nobody drains the
// channel.
func (am *AssetManager) Events() <-chan Event {
	return am.events
}

// Shutdown stops the watcher. It is safe to call more than once.
func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	if !am.started {
		close(am.events)
		return errors.Wrap(am.fsnotify.Close(), "could not close asset watcher")
	}
	close(am.done)
	<-am.stopped
	return nil
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handle(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			am.fsnotify.Close()
			close(am.events)
			return
		}
	}
}

func (am *AssetManager) handle(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("could not watch %s: %s", e.Name, err)
			}
			return
		}
	}
	switch {
	case e.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if info, ok := am.index(e.Name); ok {
			am.notify(Event{Name: info.Name, Kind: info.Kind})
		}
	case e.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A removed directory cannot be stat'ed; drop it from the watch
		// list in case it was one.
		am.fsnotify.Remove(e.Name)
		if info, ok := am.removeAsset(e.Name); ok {
			am.notify(Event{Name: info.Name, Kind: info.Kind, Removed: true})
		}
	}
}

func (am *AssetManager) notify(e Event) {
	core.LogDebug("asset %s %s changed (removed=%v)", e.Kind, e.Name, e.Removed)
	select {
	case am.events <- e:
	default:
	}
}

// watchRecursive adds path and every directory below it to the watch list
// and indexes the files it finds.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.index(walkPath)
		return nil
	})
}

func (am *AssetManager) name(path string) (string, bool) {
	rel, err := filepath.Rel(am.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (am *AssetManager) index(path string) (AssetInfo, bool) {
	kind := KindOf(path)
	if kind == KindNone {
		return AssetInfo{}, false
	}
	name, ok := am.name(path)
	if !ok {
		return AssetInfo{}, false
	}
	info := AssetInfo{Name: name, Path: path, Kind: kind, Modified: time.Now()}
	if s, err := os.Stat(path); err == nil {
		info.Modified = s.ModTime()
	}

	am.mutex.Lock()
	am.assets[name] = info
	am.mutex.Unlock()
	return info, true
}

func (am *AssetManager) removeAsset(path string) (AssetInfo, bool) {
	name, ok := am.name(path)
	if !ok {
		return AssetInfo{}, false
	}
	am.mutex.Lock()
	defer am.mutex.Unlock()
	info, ok := am.assets[name]
	delete(am.assets, name)
	return info, ok
}
