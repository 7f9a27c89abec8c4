package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-scanner/internal/store"
)

// File is one candidate photo discovered by a walk.
type File struct {
	Path      string
	Name      string
	Size      int64
	ModTimeMs int64
	SortKey   string
	PhotoDate *time.Time
}

// photoExtensions are the file types handed to the recognition pipeline.
var photoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
	".heic": true,
	".heif": true,
}

// IsPhotoFile reports whether a filename has a recognized photo extension.
func IsPhotoFile(name string) bool {
	return photoExtensions[strings.ToLower(filepath.Ext(name))]
}

// Source streams photo files out of one or more directory trees. When a
// directory cache is attached, directories whose mtime matches the cached
// value are not re-enumerated: their files were already scanned in an
// earlier run and are skipped wholesale. The cache is a performance
// optimization only; mtime-preserving changes (e.g. hardlinking a file in)
// are not detected and require an explicit cache clear.
type Source struct {
	roots  []string
	cache  store.DirectoryCache // nil disables directory skipping
	scanID string

	mu   sync.Mutex
	errs []error
}

// NewSource creates a walk source over the given root directories.
func NewSource(roots []string, cache store.DirectoryCache, scanID string) *Source {
	return &Source{roots: roots, cache: cache, scanID: scanID}
}

// Errors returns the per-directory errors collected during the last walk.
// Walk errors never abort a scan; affected directories just contribute
// nothing.
func (s *Source) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *Source) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Files streams the walk results. The channel closes when the walk finishes
// or the context is cancelled. Files within one directory arrive in sort-key
// order; no ordering is guaranteed across directories.
func (s *Source) Files(ctx context.Context) <-chan File {
	out := make(chan File)
	go func() {
		defer close(out)
		for _, root := range s.roots {
			s.walkDir(ctx, root, out)
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return out
}

func (s *Source) walkDir(ctx context.Context, dir string, out chan<- File) {
	if ctx.Err() != nil {
		return
	}

	info, err := os.Stat(dir)
	if err != nil {
		s.recordError(fmt.Errorf("stat %s: %w", dir, err))
		return
	}
	mtimeMs := info.ModTime().UnixMilli()

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.recordError(fmt.Errorf("read %s: %w", dir, err))
		return
	}

	var subdirs []string
	visible := entries[:0:0]
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			subdirs = append(subdirs, filepath.Join(dir, entry.Name()))
			continue
		}
		visible = append(visible, entry)
	}

	skip := false
	if s.cache != nil {
		if _, ok, err := s.cache.LookupDirectory(ctx, dir, mtimeMs); err != nil {
			s.recordError(fmt.Errorf("directory cache lookup %s: %w", dir, err))
		} else if ok {
			skip = true
		}
	}

	if !skip {
		files := s.enumerateFiles(dir, visible)

		// Record the cache entry right after enumeration, before any
		// yielding or recursion. An interrupted scan still remembers the
		// directories it finished reading.
		if s.cache != nil {
			err := s.cache.RecordDirectory(ctx, store.DirectoryCacheEntry{
				Path:       dir,
				MtimeMs:    mtimeMs,
				FileCount:  int64(len(files)),
				LastScanID: s.scanID,
				ScannedAt:  time.Now(),
			})
			if err != nil {
				s.recordError(fmt.Errorf("directory cache record %s: %w", dir, err))
			}
		}

		for _, f := range files {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}

	// Children always walk independently: a parent's skip decision says
	// nothing about subdirectory mtimes, which are tracked separately.
	for _, sub := range subdirs {
		s.walkDir(ctx, sub, out)
		if ctx.Err() != nil {
			return
		}
	}
}

// enumerateFiles stats the visible photo files of one directory and returns
// them in sort-key order.
func (s *Source) enumerateFiles(dir string, entries []os.DirEntry) []File {
	var files []File
	for _, entry := range entries {
		if !IsPhotoFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.recordError(fmt.Errorf("stat %s: %w", filepath.Join(dir, entry.Name()), err))
			continue
		}
		files = append(files, File{
			Path:      filepath.Join(dir, entry.Name()),
			Name:      entry.Name(),
			Size:      info.Size(),
			ModTimeMs: info.ModTime().UnixMilli(),
			SortKey:   SortKey(entry.Name()),
			PhotoDate: DateFromFilename(entry.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].SortKey < files[j].SortKey })
	return files
}

// Estimate counts the photo files a full walk would visit, using cached
// file counts for unchanged directories. Used for progress totals only.
func (s *Source) Estimate(ctx context.Context) int {
	total := 0
	for _, root := range s.roots {
		total += s.estimateDir(ctx, root)
	}
	return total
}

func (s *Source) estimateDir(ctx context.Context, dir string) int {
	if ctx.Err() != nil {
		return 0
	}

	info, err := os.Stat(dir)
	if err != nil {
		return 0
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0
	counted := false
	if s.cache != nil {
		if n, ok, err := s.cache.LookupDirectory(ctx, dir, info.ModTime().UnixMilli()); err == nil && ok {
			count = int(n)
			counted = true
		}
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			count += s.estimateDir(ctx, filepath.Join(dir, entry.Name()))
			continue
		}
		if !counted && IsPhotoFile(entry.Name()) {
			count++
		}
	}
	return count
}
