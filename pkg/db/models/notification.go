package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/furniture-production-backend/pkg/enums"
)

// Notification stores in-app notifications produced from domain events.
// A nil RecipientID addresses every operator.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID *uuid.UUID             `gorm:"column:recipient_id;type:uuid"`
	EventID     uuid.UUID              `gorm:"column:event_id;type:uuid;not null;uniqueIndex"`
	Type        enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title       string                 `gorm:"column:title;not null"`
	Message     string                 `gorm:"column:message;not null"`
	Link        *string                `gorm:"column:link"`
	ReadAt      *time.Time             `gorm:"column:read_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }
