package models

import "time"

// Account represents a row in the 'accounts' table: one credential used to
// call the upstream platform.
type Account struct {
	ID        string    `db:"id" json:"id"`
	Token     string    `db:"token" json:"-"`
	Name      string    `db:"name" json:"name"`
	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// AccountPatch carries the optional fields of an account edit.
type AccountPatch struct {
	Token  *string `json:"token,omitempty"`
	Name   *string `json:"name,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// Apply copies the set fields of p onto a.
func (p AccountPatch) Apply(a *Account) {
	if p.Token != nil {
		a.Token = *p.Token
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
}
