package models

import "time"

// HasHistory values stored on a feed.
const (
	NoMoreHistory = 0
	MoreHistory   = 1
)

// Feed represents a row in the 'feeds' table
type Feed struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Cover      string    `db:"cover" json:"cover"`
	Intro      string    `db:"intro" json:"intro"`
	SyncTime   int64     `db:"sync_time" json:"syncTime"`     // epoch seconds of the last successful sync
	UpdateTime int64     `db:"update_time" json:"updateTime"` // epoch seconds reported by the platform
	HasHistory int       `db:"has_history" json:"hasHistory"`
	Status     Status    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// NewFeed creates a new Feed with default values
func NewFeed(id string) *Feed {
	now := time.Now()
	return &Feed{
		ID:         id,
		SyncTime:   now.Unix(),
		HasHistory: MoreHistory,
		Status:     StatusEnabled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// FeedPatch carries the optional fields of a feed edit.
type FeedPatch struct {
	Name       *string `json:"name,omitempty"`
	Cover      *string `json:"cover,omitempty"`
	Intro      *string `json:"intro,omitempty"`
	SyncTime   *int64  `json:"syncTime,omitempty"`
	UpdateTime *int64  `json:"updateTime,omitempty"`
	Status     *Status `json:"status,omitempty"`
}

// Apply copies the set fields of p onto f.
func (p FeedPatch) Apply(f *Feed) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Cover != nil {
		f.Cover = *p.Cover
	}
	if p.Intro != nil {
		f.Intro = *p.Intro
	}
	if p.SyncTime != nil {
		f.SyncTime = *p.SyncTime
	}
	if p.UpdateTime != nil {
		f.UpdateTime = *p.UpdateTime
	}
	if p.Status != nil {
		f.Status = *p.Status
	}
}
