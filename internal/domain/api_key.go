package domain

import "time"

// ApiKey is a caller identity holding tier permissions and rolling
// daily/monthly usage counters. Counters reset lazily on first use after a
// UTC window boundary.
type ApiKey struct {
	ID          int64     `gorm:"primaryKey;column:id" json:"id"`
	Key         string    `gorm:"column:key;size:64;uniqueIndex;not null" json:"key"`
	Tier        int16     `gorm:"column:tier;not null" json:"tier"`
	Name        string    `gorm:"column:name;size:100" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	IsActive    bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`

	// Rate limiting; nil limit means unlimited.
	DailyLimit       *int      `gorm:"column:daily_limit" json:"daily_limit,omitempty"`
	MonthlyLimit     *int      `gorm:"column:monthly_limit" json:"monthly_limit,omitempty"`
	UsageToday       int       `gorm:"column:usage_today;not null;default:0" json:"usage_today"`
	UsageMonth       int       `gorm:"column:usage_month;not null;default:0" json:"usage_month"`
	LastResetDaily   time.Time `gorm:"column:last_reset_daily;autoCreateTime" json:"last_reset_daily"`
	LastResetMonthly time.Time `gorm:"column:last_reset_monthly;autoCreateTime" json:"last_reset_monthly"`

	// Capabilities, assigned from the tier policy at creation time.
	CanCustomCode      bool `gorm:"column:can_custom_code;not null;default:false" json:"can_custom_code"`
	CanSetExpiration   bool `gorm:"column:can_set_expiration;not null;default:false" json:"can_set_expiration"`
	CanPasswordProtect bool `gorm:"column:can_password_protect;not null;default:false" json:"can_password_protect"`
	CanBulkCreate      bool `gorm:"column:can_bulk_create;not null;default:false" json:"can_bulk_create"`
}

// TableName returns the table name for GORM.
func (ApiKey) TableName() string {
	return "api_keys"
}
