package model

import "time"

type Role string

const (
	RoleUser         Role = "user"
	RoleAdmin        Role = "admin"
	RoleSuperAdmin   Role = "super_admin"
	RoleSupportAdmin Role = "support_admin"
)

// User is the account owned by the auth collaborator. Only the fields the
// order/chat core reads are modelled here.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FirstName string `gorm:"size:100;not null" json:"first_name"`
	LastName  string `gorm:"size:100;not null" json:"last_name"`
	Email     string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      Role   `gorm:"size:20;not null;default:user" json:"role"`
	IsSeller  bool   `gorm:"not null;default:false" json:"is_seller"`
	IsActive  bool   `gorm:"not null" json:"is_active"`
	AvatarURL string `gorm:"size:500" json:"avatar_url,omitempty"`
}

func (User) TableName() string { return "users" }

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsStaff reports whether the account can reach the admin console at all.
func (u User) IsStaff() bool {
	switch u.Role {
	case RoleAdmin, RoleSuperAdmin, RoleSupportAdmin:
		return true
	}
	return false
}
