package converter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mindstream/mindstream/internal/metrics"
	"go.uber.org/zap"
)

// fieldNames is the fixed CSV schema. Every batch file starts with this
// header row, including the first.
var fieldNames = []string{"content", "id", "last_updated", "title", "url"}

// batchWriter appends rows to data_<n>.csv files, sealing the current file
// and opening the next one once its size reaches the ceiling. A sealed file
// is never reopened.
type batchWriter struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger

	seq    int
	file   *os.File
	writer *csv.Writer
	files  []string
	rows   int64
}

func newBatchWriter(dir string, maxBytes int64, logger *zap.Logger) (*batchWriter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	w := &batchWriter{dir: dir, maxBytes: maxBytes, logger: logger}
	if err := w.openNext(); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteRow appends one row, rolling over to a fresh file when the current
// one has reached the size ceiling after the write.
func (w *batchWriter) WriteRow(row []string) error {
	if err := w.write(row); err != nil {
		return err
	}
	w.rows++

	size, err := w.currentSize()
	if err != nil {
		return err
	}
	if size >= w.maxBytes {
		if err := w.seal(); err != nil {
			return err
		}
		if err := w.openNext(); err != nil {
			return err
		}
	}
	return nil
}

// Files returns the paths of every batch file created so far, in order.
func (w *batchWriter) Files() []string {
	return w.files
}

// RowsWritten returns the number of data rows written across all files.
func (w *batchWriter) RowsWritten() int64 {
	return w.rows
}

// Close seals the currently open file. The writer is unusable afterwards.
func (w *batchWriter) Close() error {
	if w.file == nil {
		return nil
	}
	return w.seal()
}

func (w *batchWriter) openNext() error {
	w.seq++
	path := filepath.Join(w.dir, fmt.Sprintf("data_%d.csv", w.seq))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create batch file %s: %w", path, err)
	}
	w.file = file
	w.writer = csv.NewWriter(file)
	w.files = append(w.files, path)
	if err := w.write(fieldNames); err != nil {
		return fmt.Errorf("write header to %s: %w", path, err)
	}
	w.logger.Debug("opened batch file", zap.String("path", path))
	return nil
}

func (w *batchWriter) write(row []string) error {
	if err := w.writer.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	// Flush after every row so the on-disk size drives rollover decisions.
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("flush csv row: %w", err)
	}
	return nil
}

func (w *batchWriter) currentSize() (int64, error) {
	info, err := w.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat batch file: %w", err)
	}
	return info.Size(), nil
}

func (w *batchWriter) seal() error {
	path := w.file.Name()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close batch file %s: %w", path, err)
	}
	w.file = nil
	w.writer = nil
	metrics.ObserveFileSealed()
	w.logger.Debug("sealed batch file", zap.String("path", path))
	return nil
}
