// Package telemetry 识别结果缓存：从 CSV 整体加载，原子替换快照。
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"scout-gateway/internal/models"

	"go.uber.org/zap"
)

// SnapshotMirror 可选：加载成功后把快照同步给外部（地图渲染等）
type SnapshotMirror interface {
	Publish(ctx context.Context, snap *Snapshot) error
}

// LoadReport 一次加载的结果
type LoadReport struct {
	Source   string    `json:"source"`
	Loaded   int       `json:"loaded"`
	Skipped  int       `json:"skipped"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Store 缓存。读操作每次只取一次快照指针，加载中也不会看到半新半旧的数据
type Store struct {
	path   string
	mirror SnapshotMirror
	logger *zap.Logger

	snap   atomic.Pointer[Snapshot]
	loadMu sync.Mutex
}

// NewStore 创建缓存，初始为空快照
func NewStore(path string, mirror SnapshotMirror, logger *zap.Logger) *Store {
	s := &Store{path: path, mirror: mirror, logger: logger}
	s.snap.Store(emptySnapshot())
	return s
}

// Load 读取并解析整个文件，成功后原子替换快照；失败时保留旧快照并返回错误
func (s *Store) Load(ctx context.Context) (LoadReport, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	p, err := s.readSource()
	if err != nil {
		s.logger.Warn("Telemetry reload failed, keeping previous snapshot",
			zap.String("source", s.path),
			zap.Int("records", s.snap.Load().Len()),
			zap.Error(err),
		)
		return LoadReport{Source: s.path}, err
	}

	next := &Snapshot{
		records:  p.records,
		order:    p.order,
		source:   s.path,
		loadedAt: time.Now(),
	}
	s.snap.Store(next)

	for _, skip := range p.skipped {
		s.logger.Debug("Skipped telemetry row", zap.String("source", s.path), zap.Error(skip))
	}
	report := LoadReport{
		Source:   s.path,
		Loaded:   next.Len(),
		Skipped:  len(p.skipped),
		LoadedAt: next.loadedAt,
	}
	s.logger.Info("Telemetry cache loaded",
		zap.String("source", s.path),
		zap.Int("records", report.Loaded),
		zap.Int("skipped", report.Skipped),
	)

	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, next); err != nil {
			s.logger.Warn("Failed to mirror telemetry snapshot", zap.Error(err))
		}
	}
	return report, nil
}

// Snapshot 当前快照
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Get 从当前快照查找单条记录
func (s *Store) Get(name string) (models.TelemetryRecord, bool) {
	return s.snap.Load().Get(name)
}

// All 当前快照的全部记录
func (s *Store) All() []models.TelemetryRecord {
	return s.snap.Load().All()
}

// ReadFresh 直接读源文件查找一条记录，不替换快照
func (s *Store) ReadFresh(name string) (models.TelemetryRecord, error) {
	p, err := s.readSource()
	if err != nil {
		return models.TelemetryRecord{}, err
	}
	rec, ok := p.records[name]
	if !ok {
		return models.TelemetryRecord{}, fmt.Errorf("%w: record %q", models.ErrNotFound, name)
	}
	return rec, nil
}

// RunReloader 按固定间隔重新加载，直到 ctx 取消。interval <= 0 时直接返回
func (s *Store) RunReloader(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 错误已在 Load 内记录
			_, _ = s.Load(ctx)
		}
	}
}

func (s *Store) readSource() (*parsed, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", models.ErrSourceUnavailable, s.path)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
	}
	defer f.Close()

	p, err := parseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return p, nil
}
