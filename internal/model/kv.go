package model

import "time"

// KeyValue строка таблицы ключ-значение. Value хранит JSON.
type KeyValue struct {
	Name      string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (KeyValue) TableName() string { return "registry_kv" }
