package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultRunDir is used when neither a pool nor a directory is configured.
var DefaultRunDir = filepath.Join(".cache", "settlement_runs")

// FileRunRepo keeps one JSON file per run: <dir>/<period>_<id>.json.
type FileRunRepo struct {
	dir string
}

// NewFileRunRepo creates dir if needed.
func NewFileRunRepo(dir string) (*FileRunRepo, error) {
	if dir == "" {
		dir = DefaultRunDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run dir %s: %w", dir, err)
	}
	return &FileRunRepo{dir: dir}, nil
}

// Dir is the archive directory.
func (r *FileRunRepo) Dir() string { return r.dir }

func (r *FileRunRepo) Save(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	path := r.path(run.Period, run.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

func (r *FileRunRepo) Load(ctx context.Context, id string) (*Run, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*_"+id+".json"))
	if err != nil {
		return nil, fmt.Errorf("bad run id: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return r.loadFile(matches[0])
}

func (r *FileRunRepo) Latest(ctx context.Context, period string) (*Run, error) {
	runs, err := r.List(ctx, period)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("period %s: %w", period, ErrRunNotFound)
	}
	return runs[len(runs)-1], nil
}

func (r *FileRunRepo) List(ctx context.Context, period string) ([]*Run, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.dir, err)
	}

	prefix := safeName(period) + "_"
	var runs []*Run
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		run, err := r.loadFile(filepath.Join(r.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if run.Period == period {
			runs = append(runs, run)
		}
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].CreatedAt.Before(runs[j].CreatedAt) })
	return runs, nil
}

func (r *FileRunRepo) path(period, id string) string {
	return filepath.Join(r.dir, safeName(period)+"_"+id+".json")
}

func (r *FileRunRepo) loadFile(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return decodeRun(data)
}

func safeName(s string) string {
	return strings.NewReplacer("/", "-", "\\", "-", " ", "", "_", "-").Replace(s)
}
