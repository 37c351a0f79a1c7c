package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

// Extension of compiled shader binaries, e.g. shader.vert.spv.
const ShaderExtension = ".spv"

type ShaderInfo struct {
	Name       string
	Path       string
	Size       int
	LastLoaded time.Time
}

// ShaderLibrary loads SPIR-V binaries from a directory and, once watching,
// posts EVENT_CODE_SHADER_RELOADED when one of them changes on disk.
type ShaderLibrary struct {
	dir    string
	events *core.EventBus

	mutex   sync.RWMutex
	shaders map[string][]byte
	info    map[string]ShaderInfo

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
}

// NewShaderLibrary reads from dir. events may be nil when hot reload is not used.
func NewShaderLibrary(dir string, events *core.EventBus) *ShaderLibrary {
	return &ShaderLibrary{
		dir:     dir,
		events:  events,
		shaders: make(map[string][]byte),
		info:    make(map[string]ShaderInfo),
	}
}

func (sl *ShaderLibrary) Dir() string {
	return sl.dir
}

func (sl *ShaderLibrary) path(name string) string {
	if !strings.HasSuffix(name, ShaderExtension) {
		name += ShaderExtension
	}
	return filepath.Join(sl.dir, name)
}

// Load returns the validated SPIR-V for name ("shader.vert" or
// "shader.vert.spv"). Results are cached until the file changes.
func (sl *ShaderLibrary) Load(name string) ([]byte, error) {
	name = strings.TrimSuffix(name, ShaderExtension)

	sl.mutex.RLock()
	code, exists := sl.shaders[name]
	sl.mutex.RUnlock()
	if exists {
		return code, nil
	}

	path := sl.path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to load shader %s: %w", name, err)
		core.LogError(err.Error())
		return nil, err
	}
	if _, err := vulkan.SPIRVWords(data); err != nil {
		err = fmt.Errorf("shader %s at %s: %w", name, path, err)
		core.LogError(err.Error())
		return nil, err
	}

	sl.mutex.Lock()
	sl.shaders[name] = data
	sl.info[name] = ShaderInfo{Name: name, Path: path, Size: len(data), LastLoaded: time.Now()}
	sl.mutex.Unlock()

	core.LogDebug("Loaded shader %s (%d bytes)", name, len(data))
	return data, nil
}

// LoadStages loads <name>.vert and <name>.frag.
func (sl *ShaderLibrary) LoadStages(name string) (vertex, fragment []byte, err error) {
	if vertex, err = sl.Load(name + ".vert"); err != nil {
		return nil, nil, err
	}
	if fragment, err = sl.Load(name + ".frag"); err != nil {
		return nil, nil, err
	}
	return vertex, fragment, nil
}

// Info returns what is known about a loaded shader.
func (sl *ShaderLibrary) Info(name string) (ShaderInfo, bool) {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	info, ok := sl.info[strings.TrimSuffix(name, ShaderExtension)]
	return info, ok
}

// Watch starts watching the directory and its sub-directories.
func (sl *ShaderLibrary) Watch() error {
	sl.mutex.Lock()
	if sl.isClosed {
		sl.mutex.Unlock()
		return errors.New("shader library already closed")
	}
	if sl.fsnotify != nil {
		sl.mutex.Unlock()
		return nil
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		sl.mutex.Unlock()
		return err
	}
	sl.fsnotify = fsWatch
	sl.done = make(chan struct{})
	sl.mutex.Unlock()

	if err := sl.watchRecursive(sl.dir); err != nil {
		sl.Close()
		return err
	}

	sl.wg.Add(1)
	go sl.start()
	core.LogInfo("Watching %s for shader changes", sl.dir)
	return nil
}

// Close stops the watcher. It is safe to call more than once.
func (sl *ShaderLibrary) Close() error {
	sl.mutex.Lock()
	if sl.isClosed {
		sl.mutex.Unlock()
		return nil
	}
	sl.isClosed = true
	watcher, done := sl.fsnotify, sl.done
	sl.mutex.Unlock()

	if watcher == nil {
		return nil
	}
	close(done)
	sl.wg.Wait()
	return watcher.Close()
}

func (sl *ShaderLibrary) start() {
	defer sl.wg.Done()
	for {
		select {
		case e, ok := <-sl.fsnotify.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := sl.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				sl.handleFileEvent(e.Name)
			}

		case err, ok := <-sl.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-sl.done:
			return
		}
	}
}

// watchRecursive adds all directories under path to the watch list.
func (sl *ShaderLibrary) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return sl.fsnotify.Add(walkPath)
		}
		return nil
	})
}

// handleFileEvent drops the cached copy and notifies the frame loop.
func (sl *ShaderLibrary) handleFileEvent(path string) {
	if filepath.Ext(path) != ShaderExtension {
		return
	}
	rel, err := filepath.Rel(sl.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	name := strings.TrimSuffix(filepath.ToSlash(rel), ShaderExtension)

	sl.mutex.Lock()
	delete(sl.shaders, name)
	sl.mutex.Unlock()

	core.LogDebug("Shader %s changed on disk", name)
	if sl.events != nil {
		sl.events.Post(core.EventContext{
			Type: core.EVENT_CODE_SHADER_RELOADED,
			Data: &core.AssetEvent{Name: name, Path: path},
		})
	}
}
