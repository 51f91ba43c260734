package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentNotificationLogStatus string

const (
	PaymentNotificationLogStatusReceived     PaymentNotificationLogStatus = "received"
	PaymentNotificationLogStatusHandled      PaymentNotificationLogStatus = "handled"
	PaymentNotificationLogStatusHandleFailed PaymentNotificationLogStatus = "handle_failed"
	PaymentNotificationLogStatusIgnored      PaymentNotificationLogStatus = "ignored"
)

// PaymentNotificationLog is the audit trail of webhook deliveries.
type PaymentNotificationLog struct {
	ID               string                       `gorm:"column:id;type:uuid;primary_key" json:"id" bson:"_id"`
	Topic            string                       `gorm:"column:topic;type:varchar(64);not null" json:"topic" bson:"topic"`
	EventID          string                       `gorm:"column:event_id;type:varchar(128);index" json:"event_id" bson:"event_id"`
	TenantID         *string                      `gorm:"column:tenant_id;type:varchar(64)" json:"tenant_id" bson:"tenant_id,omitempty"`
	TraceID          string                       `gorm:"column:trace_id;type:varchar(128)" json:"trace_id" bson:"trace_id"`
	NotificationTime time.Time                    `gorm:"column:notification_time" json:"notification_time" bson:"notification_time"`
	Data             datatypes.JSON               `gorm:"column:data;type:jsonb" json:"data" bson:"data"`
	Result           *string                      `gorm:"column:result;type:text" json:"result" bson:"result,omitempty"`
	Status           PaymentNotificationLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status" bson:"status"`
	CreatedAt        time.Time                    `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time                    `json:"updated_at" bson:"updated_at"`
}

func (PaymentNotificationLog) TableName() string { return "payment_notification_log" }
