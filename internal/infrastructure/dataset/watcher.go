package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/jimlawless/whereami"
)

// Watcher следит за каталогом датасета и отдаёт новые изображения пачками.
// Пачка отправляется, когда в течение debounce не было новых событий.
type Watcher struct {
	root     string
	walker   *Walker
	debounce time.Duration
	logger   logger.Logger
}

func NewWatcher(root string, walker *Walker, debounce time.Duration, logger logger.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		root:     root,
		walker:   walker,
		debounce: debounce,
		logger:   logger,
	}
}

// Run блокируется до отмены ctx. onBatch вызывается последовательно, пути в пачке уникальны и отсортированы.
func (w *Watcher) Run(ctx context.Context, onBatch func(ctx context.Context, paths []string)) error {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer func() {
		if err := fsw.Close(); err != nil {
			w.logger.Warnf("failed to close watcher: %v", err)
		}
	}()

	if err := w.addDirs(fsw, root); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	paths := make(chan string)
	go func() {
		defer close(paths)
		w.forward(ctx, fsw, root, paths)
	}()

	collect(ctx, paths, w.debounce, func(batch []string) {
		onBatch(ctx, batch)
	})
	return nil
}

// addDirs подписывается на root и все вложенные каталоги: fsnotify не рекурсивен.
func (w *Watcher) addDirs(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// forward переводит события fsnotify в пути подходящих файлов.
func (w *Watcher) forward(ctx context.Context, fsw *fsnotify.Watcher, root string, out chan<- string) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("watch error: %v", err)
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if event.Has(fsnotify.Create) {
					if err := w.addDirs(fsw, event.Name); err != nil {
						w.logger.Warnf("failed to watch new directory %s: %v", event.Name, err)
					}
				}
				continue
			}

			rel, err := filepath.Rel(root, event.Name)
			if err != nil || !w.walker.Match(rel) {
				continue
			}

			select {
			case out <- event.Name:
			case <-ctx.Done():
				return
			}
		}
	}
}

// collect копит пути и вызывает flush после паузы window. Остаток сбрасывается при закрытии in.
func collect(ctx context.Context, in <-chan string, window time.Duration, flush func([]string)) {
	var (
		pending = make(map[string]struct{})
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	emit := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]string, 0, len(pending))
		for p := range pending {
			batch = append(batch, p)
		}
		sort.Strings(batch)
		clear(pending)
		flush(batch)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-in:
			if !ok {
				emit()
				return
			}
			pending[p] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(window)
				fire = timer.C
			} else {
				timer.Reset(window)
			}
		case <-fire:
			emit()
		}
	}
}
