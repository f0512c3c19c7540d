package models

import "fmt"

// EmergencyContact 紧急联系人（对应 emergency_contacts 表）
type EmergencyContact struct {
	ContactID   string `json:"contact_id" db:"contact_id"`
	UserID      string `json:"user_id" db:"user_id"`
	FirstName   string `json:"first_name" db:"first_name"`
	LastName    string `json:"last_name" db:"last_name"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`
}

// FullName 返回 "名 姓"
func (c EmergencyContact) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Descriptor 用于失败列表的描述："名 姓 (电话)"
func (c EmergencyContact) Descriptor() string {
	return fmt.Sprintf("%s (%s)", c.FullName(), c.PhoneNumber)
}
