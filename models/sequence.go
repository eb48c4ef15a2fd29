package models

// Sequence is a named monotonic counter. Values are never reused.
type Sequence struct {
	Name  string `json:"name" gorm:"primaryKey;size:64"`
	Value int64  `json:"value" gorm:"not null;default:0"`
}
