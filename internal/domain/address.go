package domain

import "time"

type Address struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	FullName  string    `json:"fullName"`
	Phone     string    `json:"phoneNumber,omitempty"`
	Pincode   string    `json:"pincode,omitempty"`
	Area      string    `json:"area,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
