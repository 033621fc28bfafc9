package telemetry

import (
	"time"

	"scout-gateway/internal/models"
)

// Snapshot 一份完整且不可变的缓存版本，每次 reload 整体生成
type Snapshot struct {
	records  map[string]models.TelemetryRecord
	order    []string
	source   string
	loadedAt time.Time
}

func emptySnapshot() *Snapshot {
	return &Snapshot{records: map[string]models.TelemetryRecord{}}
}

// Get 按名称查找
func (s *Snapshot) Get(name string) (models.TelemetryRecord, bool) {
	rec, ok := s.records[name]
	return rec, ok
}

// All 按文件顺序返回全部记录（副本）
func (s *Snapshot) All() []models.TelemetryRecord {
	out := make([]models.TelemetryRecord, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.records[name])
	}
	return out
}

// Names 按文件顺序返回全部名称
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len 记录数量
func (s *Snapshot) Len() int { return len(s.records) }

// LoadedAt 生成时间，初始空快照为零值
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Source 来源文件
func (s *Snapshot) Source() string { return s.source }
