package models

import (
	"time"
)

// Community stores councils as a json array to keep their order and duplicates.
type Community struct {
	ID       uint64    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name     string    `json:"name" gorm:"type:text;not null"`
	Address  string    `json:"address" gorm:"type:text;not null"`
	Owner    string    `json:"owner" gorm:"type:text;index;not null"`
	Councils string    `json:"councils" gorm:"type:text;not null"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;autoCreateTime"`
	MDate    time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

// CommunityEvent is the append-only log of committed notifications.
type CommunityEvent struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CommunityID uint64    `json:"communityID" gorm:"index;not null"`
	Type        string    `json:"type" gorm:"type:text;not null"`
	Owner       string    `json:"owner" gorm:"type:text;not null"`
	Name        string    `json:"name" gorm:"type:text;not null"`
	Councils    string    `json:"councils" gorm:"type:text"`
	CDate       time.Time `json:"cdate" gorm:"autoCreateTime"`
}
