package dataset

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/DRSN-tech/style-recommender/pkg/e"
	"github.com/bmatcuk/doublestar/v4"
)

var defaultIncludes = []string{"**/*.jpg", "**/*.jpeg", "**/*.png", "**/*.webp"}

// Walker отбирает изображения датасета по glob-шаблонам относительно корня.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes []string, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = defaultIncludes
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk возвращает абсолютные пути подходящих файлов в лексикографическом порядке.
func (w *Walker) Walk(root string) ([]string, error) {
	const op = "Walker.Walk"

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && w.excluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.Match(rel) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Match проверяет путь относительно корня датасета.
func (w *Walker) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	return w.included(rel) && !w.excluded(rel)
}

func (w *Walker) included(rel string) bool {
	for _, pattern := range w.includes {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (w *Walker) excluded(rel string) bool {
	for _, pattern := range w.excludes {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
