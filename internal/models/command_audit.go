package models

import "time"

// 命令类型
const (
	CommandKindPattern = "pattern"
	CommandKindMission = "mission"
)

// CommandAudit 一条已成功交给总线客户端的命令
type CommandAudit struct {
	ID          int64     `json:"id"`
	Kind        string    `json:"kind"`
	Topic       string    `json:"topic"`
	Payload     string    `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}
