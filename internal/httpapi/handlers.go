package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"scout-gateway/internal/models"
	"scout-gateway/internal/telemetry"

	"go.uber.org/zap"
)

// CommandService 下行指令
type CommandService interface {
	GeneratePattern(ctx context.Context, req models.PatternRequest) (models.PatternConfig, error)
	SendMission(ctx context.Context, req models.MissionRequest) error
}

// TelemetryService 识别结果查询与重载
type TelemetryService interface {
	Load(ctx context.Context) (telemetry.LoadReport, error)
	Get(name string) (models.TelemetryRecord, bool)
	All() []models.TelemetryRecord
	ReadFresh(name string) (models.TelemetryRecord, error)
}

// StreamService WebSocket 推流入口
type StreamService interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// AuditReader 指令审计查询，未启用数据库时为 nil
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]models.CommandAudit, error)
}

// Status 运行状态
type Status struct {
	MQTTConnected     bool      `json:"mqtt_connected"`
	StreamClients     int       `json:"stream_clients"`
	Broadcasts        int64     `json:"broadcasts"`
	EvictedClients    int64     `json:"evicted_clients"`
	HandoffDepth      int       `json:"handoff_depth"`
	HandoffDropped    int64     `json:"handoff_dropped"`
	TelemetryRecords  int       `json:"telemetry_records"`
	TelemetryLoadedAt time.Time `json:"telemetry_loaded_at"`
}

// StatusFunc 由服务层提供，汇总各组件计数
type StatusFunc func() Status

type Handler struct {
	commands  CommandService
	telemetry TelemetryService
	streams   StreamService
	audit     AuditReader
	status    StatusFunc
	logger    *zap.Logger
}

func NewHandler(
	commands CommandService,
	telemetry TelemetryService,
	streams StreamService,
	audit AuditReader,
	status StatusFunc,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		commands:  commands,
		telemetry: telemetry,
		streams:   streams,
		audit:     audit,
		status:    status,
		logger:    logger,
	}
}

// GenerateWaypoint POST /generate_waypoint
func (h *Handler) GenerateWaypoint(w http.ResponseWriter, r *http.Request) {
	var req models.PatternRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	cfg, err := h.commands.GeneratePattern(r.Context(), req)
	if err != nil {
		h.logger.Warn("generate_waypoint failed", zap.String("filename", req.Filename), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok("Pattern request sent", cfg))
}

// SendMissionCommand POST /send_mission_command
func (h *Handler) SendMissionCommand(w http.ResponseWriter, r *http.Request) {
	var req models.MissionRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if err := h.commands.SendMission(r.Context(), req); err != nil {
		h.logger.Warn("send_mission_command failed", zap.String("command", req.Command), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(fmt.Sprintf("Mission command %q sent", req.Command), map[string]any{
		"command": req.Command,
	}))
}

// ReloadTelemetry POST /reload-ai-data
// 数据源不可读时返回 warning，缓存保持不变
func (h *Handler) ReloadTelemetry(w http.ResponseWriter, r *http.Request) {
	report, err := h.telemetry.Load(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrSourceUnavailable) {
			writeJSON(w, http.StatusOK, Warn(err.Error(), report))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok("AI data reloaded", report))
}

// GetTelemetry GET /get-info/{name}
func (h *Handler) GetTelemetry(w http.ResponseWriter, r *http.Request, name string) {
	rec, ok := h.telemetry.Get(name)
	if !ok {
		writeError(w, fmt.Errorf("%w: record %q", models.ErrNotFound, name))
		return
	}
	writeJSON(w, http.StatusOK, Ok("", rec))
}

// GetFreshTelemetry GET /get-image-info/{name}
func (h *Handler) GetFreshTelemetry(w http.ResponseWriter, r *http.Request, name string) {
	rec, err := h.telemetry.ReadFresh(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok("", rec))
}

// GetAllTelemetry GET /get-all-ai-info
func (h *Handler) GetAllTelemetry(w http.ResponseWriter, r *http.Request) {
	records := h.telemetry.All()
	if records == nil {
		records = []models.TelemetryRecord{}
	}
	writeJSON(w, http.StatusOK, Ok("", map[string]any{
		"items": records,
		"total": len(records),
	}))
}

// CommandLog GET /command-log?limit=50
func (h *Handler) CommandLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeJSON(w, http.StatusNotFound, Fail("command audit disabled"))
		return
	}
	entries, err := h.audit.Recent(r.Context(), parseInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		h.logger.Error("Failed to query command audit", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to query command audit"))
		return
	}
	if entries == nil {
		entries = []models.CommandAudit{}
	}
	writeJSON(w, http.StatusOK, Ok("", map[string]any{
		"items": entries,
		"total": len(entries),
	}))
}

// Status GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok("", h.status()))
}
