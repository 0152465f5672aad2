package domain

import "time"

// Link represents one short-code to target-URL mapping.
type Link struct {
	ID           int64      `gorm:"primaryKey;column:id" json:"id"`
	Code         string     `gorm:"column:code;size:20;uniqueIndex;not null" json:"code"`
	Target       string     `gorm:"column:target;size:2048;not null" json:"target"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	ExpiresAt    *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	ClickCount   int64      `gorm:"column:click_count;not null;default:0" json:"click_count"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	IsDeleted    bool       `gorm:"column:is_deleted;not null;default:false" json:"is_deleted"`
	PasswordHash *string    `gorm:"column:password_hash;size:255" json:"-"`
	OwnerKey     *string    `gorm:"column:owner_key;size:64;index" json:"owner_key,omitempty"`
	Title        *string    `gorm:"column:title;size:255" json:"title,omitempty"`
	Description  *string    `gorm:"column:description;type:text" json:"description,omitempty"`
	Tags         string     `gorm:"column:tags;size:500" json:"tags,omitempty"` // comma-joined, normalized

	Clicks []ClickEvent `gorm:"foreignKey:LinkID" json:"clicks,omitempty"`
}

// TableName returns the table name for GORM.
func (Link) TableName() string {
	return "links"
}

// IsExpired reports whether the link's expiry, if any, is in the past.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// IsPasswordProtected reports whether a resolve requires a password.
func (l *Link) IsPasswordProtected() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// TagList returns the stored tags as an ordered slice.
func (l *Link) TagList() []string {
	if l.Tags == "" {
		return nil
	}
	return SplitTags(l.Tags)
}

// OwnedBy reports whether the link was created under the given key token.
// Orphaned links (owner key deleted) are owned by nobody.
func (l *Link) OwnedBy(keyToken string) bool {
	return l.OwnerKey != nil && *l.OwnerKey == keyToken
}
