// Package loader reads a data directory into source documents.
package loader

import (
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/liliang-cn/ragchat/internal/domain"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Loader walks a directory and reads every matching file as one document
type Loader struct {
	includes []string
	excludes []string
	logger   *zap.Logger
}

// New creates a loader. Patterns are doublestar globs relative to the data directory.
func New(includes, excludes []string, logger *zap.Logger) *Loader {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		includes: includes,
		excludes: excludes,
		logger:   logger,
	}
}

// Load returns the documents under dir in lexical path order. Files that are
// not valid UTF-8 text are skipped.
func (l *Loader) Load(dir string) ([]domain.SourceDocument, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var docs []domain.SourceDocument
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if l.matchAny(l.excludes, relPath) || l.matchAny(l.excludes, relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !l.matchAny(l.includes, relPath) || l.matchAny(l.excludes, relPath) {
			return nil
		}

		doc, ok, err := l.read(path, d)
		if err != nil {
			return err
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

func (l *Loader) read(path string, d fs.DirEntry) (domain.SourceDocument, bool, error) {
	info, err := d.Info()
	if err != nil {
		return domain.SourceDocument{}, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SourceDocument{}, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		l.logger.Warn("skipping non-text file", zap.String("path", path))
		return domain.SourceDocument{}, false, nil
	}

	metadata := map[string]any{
		domain.MetadataKeyFilePath:         path,
		domain.MetadataKeyFileName:         filepath.Base(path),
		domain.MetadataKeyFileSize:         info.Size(),
		domain.MetadataKeyCreationDate:     info.ModTime().Format(dateLayout),
		domain.MetadataKeyLastModifiedDate: info.ModTime().Format(dateLayout),
	}
	if mimeType := mime.TypeByExtension(filepath.Ext(path)); mimeType != "" {
		metadata[domain.MetadataKeyFileType] = mimeType
	}

	return domain.SourceDocument{Text: string(data), Metadata: metadata}, true, nil
}

func (l *Loader) matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
