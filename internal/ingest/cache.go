package ingest

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shoppersense/internal/models"
)

const cacheVersion = "v2"

type cachedFile struct {
	Transactions []models.Transaction
	Skipped      int
	LastModified time.Time
}

// Loader reads CSV files through a gob cache keyed by path. A cache entry is
// used only when it was written after the file's last modification.
type Loader struct {
	CacheDir string
	Logger   *slog.Logger
}

func (l *Loader) LoadFile(ctx context.Context, path string) ([]models.Transaction, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat csv: %w", err)
	}

	if l.CacheDir != "" {
		if cached, err := l.loadCache(path); err == nil && info.ModTime().Before(cached.LastModified) {
			logger.Info("loaded transactions from cache", "file", path, "records", len(cached.Transactions))
			return cached.Transactions, nil
		}
	}

	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	res, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("process csv %s: %w", path, err)
	}

	duration := time.Since(start)
	logger.Info("csv processing complete",
		"file", path,
		"records", len(res.Transactions),
		"skipped", res.Skipped,
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(res.Transactions))/duration.Seconds()))

	if l.CacheDir != "" {
		if err := l.saveCache(path, res); err != nil {
			logger.Warn("failed to save cache", "error", err)
		}
	}

	return res.Transactions, nil
}

func (l *Loader) cacheFile(csvPath string) string {
	name := strings.ReplaceAll(filepath.Clean(csvPath), string(filepath.Separator), "_")
	return filepath.Join(l.CacheDir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

func (l *Loader) saveCache(csvPath string, res *Result) error {
	if err := os.MkdirAll(l.CacheDir, 0o755); err != nil {
		return err
	}

	file, err := os.Create(l.cacheFile(csvPath))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(cachedFile{
		Transactions: res.Transactions,
		Skipped:      res.Skipped,
		LastModified: time.Now(),
	})
}

func (l *Loader) loadCache(csvPath string) (*cachedFile, error) {
	file, err := os.Open(l.cacheFile(csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data cachedFile
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
