package models

import "time"

// Article represents a row in the articles table
type Article struct {
	ID          string    `db:"id" json:"id"`           // platform-assigned, globally unique
	FeedID      string    `db:"feed_id" json:"feedId"` // ID from the 'feeds' table
	Title       string    `db:"title" json:"title"`
	PicURL      string    `db:"pic_url" json:"picUrl"`
	PublishTime int64     `db:"publish_time" json:"publishTime"` // epoch seconds
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// URL returns the public link of the article on the platform.
func (a Article) URL() string {
	return "https://mp.weixin.qq.com/s/" + a.ID
}
