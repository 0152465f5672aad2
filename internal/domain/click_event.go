package domain

import "time"

// ClickEvent is one recorded visit to a Link. Events are append-only and
// never updated; they are removed only when the owning link is permanently
// deleted.
type ClickEvent struct {
	ID         int64     `gorm:"primaryKey;column:id" json:"id"`
	LinkID     int64     `gorm:"column:link_id;not null;index:idx_link_clicked" json:"link_id"`
	ClickedAt  time.Time `gorm:"column:clicked_at;autoCreateTime;index:idx_link_clicked" json:"clicked_at"`
	IPAddress  *string   `gorm:"column:ip_address;size:45" json:"ip_address,omitempty"` // IPv6 up to 45 chars
	UserAgent  *string   `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	Referer    *string   `gorm:"column:referer;type:text" json:"referer,omitempty"`
	Country    *string   `gorm:"column:country;size:2" json:"country,omitempty"`
	City       *string   `gorm:"column:city;size:100" json:"city,omitempty"`
	DeviceType string    `gorm:"column:device_type;size:20;not null;default:unknown" json:"device_type"`
	Browser    string    `gorm:"column:browser;size:50;not null;default:unknown" json:"browser"`
	OS         string    `gorm:"column:os;size:50;not null;default:unknown" json:"os"`
}

// TableName returns the table name for GORM.
func (ClickEvent) TableName() string {
	return "click_events"
}

// NameCount is one entry of a frequency breakdown.
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ClickBreakdown aggregates a link's click events on read. Browsers and
// operating systems are the top 10 by frequency descending; the device
// breakdown is unbounded since the category set is fixed.
type ClickBreakdown struct {
	Devices          map[string]int64 `json:"devices"`
	Browsers         []NameCount      `json:"browsers"`
	OperatingSystems []NameCount      `json:"operating_systems"`
}
