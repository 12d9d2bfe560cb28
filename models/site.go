package models

import "time"

// Site represents a monitored venue registered by an operator. Each site is
// linked to exactly one physical sensor via SensorDeviceID.
type Site struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AdminUserID    uint      `gorm:"index;not null" json:"-"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	Address        string    `gorm:"size:255" json:"address"`
	Category       string    `gorm:"size:64" json:"category"`
	MaxCapacity    int       `gorm:"not null" json:"max_capacity"`
	SensorDeviceID string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Lat            float64   `gorm:"default:18.5204" json:"lat"`
	Lng            float64   `gorm:"default:73.8567" json:"lng"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Counter CounterState `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"counter"`
}
