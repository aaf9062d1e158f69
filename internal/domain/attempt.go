package domain

import "time"

// PushAttempt records a single provider call issued while executing a push
// step, for operator audit of partial failures.
type PushAttempt struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	PushID       string  `gorm:"type:uuid;not null"`
	Step         Step    `gorm:"type:varchar(20);not null"`
	StatusCode   *int    `gorm:"type:int"`
	ResponseBody *string `gorm:"type:text"`
	Error        *string `gorm:"type:text"`
	CreatedAt    time.Time
}
