package models

import "time"

// BusMessage 从总线收到的一条消息，入队后不再修改
type BusMessage struct {
	Topic      string    `json:"topic"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}
