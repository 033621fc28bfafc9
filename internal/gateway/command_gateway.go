package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"scout-gateway/internal/models"

	"go.uber.org/zap"
)

// Publisher 总线发布能力（由 common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// AuditRecorder 可选的命令审计
type AuditRecorder interface {
	Record(ctx context.Context, entry models.CommandAudit) error
}

// auditTimeout 审计写入的上限，避免慢库拖住应答
const auditTimeout = 2 * time.Second

// Topics 两个出站通道
type Topics struct {
	Pattern string
	Mission string
}

// CommandGateway 把客户端请求转换为总线消息。无状态，不重试
type CommandGateway struct {
	pub       Publisher
	artifacts ArtifactResolver
	audit     AuditRecorder
	topics    Topics
	qos       byte
	logger    *zap.Logger
}

// NewCommandGateway 创建命令网关，audit 可以为 nil
func NewCommandGateway(
	pub Publisher,
	artifacts ArtifactResolver,
	audit AuditRecorder,
	topics Topics,
	qos byte,
	logger *zap.Logger,
) *CommandGateway {
	return &CommandGateway{
		pub:       pub,
		artifacts: artifacts,
		audit:     audit,
		topics:    topics,
		qos:       qos,
		logger:    logger,
	}
}

// GeneratePattern 合并默认参数与调用方覆盖值，发布到 pattern 通道
func (g *CommandGateway) GeneratePattern(ctx context.Context, req models.PatternRequest) (models.PatternConfig, error) {
	path, err := g.artifacts.Resolve(req.Filename)
	if err != nil {
		return models.PatternConfig{}, err
	}

	cfg := models.DefaultPatternConfig()
	if req.Params != nil {
		cfg = cfg.Merge(*req.Params)
	}
	cfg.KMLFile = path

	payload, err := json.Marshal(cfg)
	if err != nil {
		return models.PatternConfig{}, fmt.Errorf("failed to marshal pattern config: %w", err)
	}

	if err := g.publish(ctx, models.CommandKindPattern, g.topics.Pattern, payload); err != nil {
		return models.PatternConfig{}, err
	}
	return cfg, nil
}

// SendMission 原样发布任务指令。空串或纯空白指令视为缺失
func (g *CommandGateway) SendMission(ctx context.Context, req models.MissionRequest) error {
	if strings.TrimSpace(req.Command) == "" {
		return fmt.Errorf("%w: command not provided in payload (empty or whitespace-only)", models.ErrInvalidInput)
	}
	return g.publish(ctx, models.CommandKindMission, g.topics.Mission, []byte(req.Command))
}

func (g *CommandGateway) publish(ctx context.Context, kind, topic string, payload []byte) error {
	if err := g.pub.Publish(topic, g.qos, false, payload); err != nil {
		g.logger.Error("Failed to publish command",
			zap.String("kind", kind),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", models.ErrPublishFailure, err)
	}

	g.logger.Info("Published command",
		zap.String("kind", kind),
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	if g.audit != nil {
		entry := models.CommandAudit{
			Kind:        kind,
			Topic:       topic,
			Payload:     string(payload),
			PublishedAt: time.Now().UTC(),
		}
		// 审计尽力而为：不随请求取消，且有独立超时
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		if err := g.audit.Record(auditCtx, entry); err != nil {
			g.logger.Warn("Failed to record command audit", zap.String("kind", kind), zap.Error(err))
		}
	}
	return nil
}
