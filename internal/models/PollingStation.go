package models

import "time"

// PollingStation (bureau de vote) is created lazily on the first submission
// that references its center. (center_id, name) is unique.
type PollingStation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CenterID  uint      `gorm:"not null;uniqueIndex:uq_station_center_name,priority:1" json:"center_id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uq_station_center_name,priority:2" json:"name"`
	CreatedAt time.Time `json:"created_at"`

	Center *Center `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

func (PollingStation) TableName() string { return "polling_stations" }
