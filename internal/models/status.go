package models

// Status is the enabled/invalid state shared by accounts and feeds.
type Status int

const (
	StatusInvalid Status = 0
	StatusEnabled Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusEnabled:
		return "enabled"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusEnabled || s == StatusInvalid
}
