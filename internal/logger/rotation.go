package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const rotatedLayout = "20060102-150405.000"

// RotatingWriter is a size-rotated log file. It is safe for concurrent use.
type RotatingWriter struct {
	filename string
	maxSize  int64 // bytes
	maxAge   time.Duration
	compress bool

	mu          sync.Mutex
	currentFile *os.File
	currentSize int64
	background  sync.WaitGroup
}

// NewRotatingWriter opens filename for appending. maxSizeMB <= 0 disables
// rotation, maxAgeDays <= 0 keeps rotated files forever.
func NewRotatingWriter(filename string, maxSizeMB int, maxAgeDays int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rw := &RotatingWriter{
		filename: filename,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		compress: compress,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}

	rw.prune(time.Now())

	return rw, nil
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.currentFile = file
	w.currentSize = info.Size()
	return nil
}

// Write appends p, rotating first when p would push the file past the limit
func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return 0, os.ErrClosed
	}

	if w.maxSize > 0 && w.currentSize > 0 && w.currentSize+int64(len(p)) > w.maxSize {
		if err := w.rotate(time.Now()); err != nil {
			return 0, err
		}
	}

	n, err = w.currentFile.Write(p)
	w.currentSize += int64(n)
	return n, err
}

// Close closes the current file and waits for pending compression
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	file := w.currentFile
	w.currentFile = nil
	w.mu.Unlock()

	w.background.Wait()

	if file != nil {
		return file.Close()
	}
	return nil
}

// rotate moves the live file aside and reopens it. Caller holds w.mu.
func (w *RotatingWriter) rotate(now time.Time) error {
	if err := w.currentFile.Close(); err != nil {
		return err
	}

	rotated := w.filename + "." + now.Format(rotatedLayout)
	if err := os.Rename(w.filename, rotated); err != nil {
		return err
	}

	if err := w.open(); err != nil {
		return err
	}

	w.background.Add(1)
	go func() {
		defer w.background.Done()
		if w.compress {
			if err := compressFile(rotated); err != nil {
				fmt.Fprintf(os.Stderr, "log rotation: compress %s: %v\n", rotated, err)
			}
		}
		w.prune(now)
	}()

	return nil
}

// compressFile gzips filename to filename.gz and removes the original
func compressFile(filename string) error {
	src, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filename + ".gz")
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(dst)
	if _, err := io.Copy(gzw, src); err != nil {
		gzw.Close()
		dst.Close()
		return err
	}
	if err := gzw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return os.Remove(filename)
}

// prune removes rotated files older than maxAge
func (w *RotatingWriter) prune(now time.Time) {
	if w.maxAge <= 0 {
		return
	}

	files, err := filepath.Glob(w.filename + ".*")
	if err != nil {
		return
	}

	cutoff := now.Add(-w.maxAge)
	for _, file := range files {
		if !strings.HasPrefix(filepath.Base(file), filepath.Base(w.filename)+".") {
			continue
		}
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(file)
		}
	}
}
