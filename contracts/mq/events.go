package mq

import (
	"encoding/json"
	"time"
)

// 事件目录：webhook 只投递这五种事件
const (
	EventTaskCreated      = "task.created"
	EventTaskUpdated      = "task.updated"
	EventTaskCompleted    = "task.completed"
	EventProjectCreated   = "project.created"
	EventProjectCompleted = "project.completed"
)

// KnownEvent reports whether the event type is part of the catalog.
func KnownEvent(event string) bool {
	switch event {
	case EventTaskCreated, EventTaskUpdated, EventTaskCompleted,
		EventProjectCreated, EventProjectCompleted:
		return true
	}
	return false
}

// EventMessage MQ 上的事件信封；data 为实体快照
type EventMessage struct {
	EventID   int64           `json:"event_id"`
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
