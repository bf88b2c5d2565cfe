package domain

import "time"

type User struct {
	ID            string    `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	Country       string    `json:"country" db:"country"`
	IsAdmin       bool      `json:"is_admin" db:"is_admin"`
	RecordStoreID *string   `json:"-" db:"record_store_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
