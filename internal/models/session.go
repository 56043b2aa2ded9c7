package models

// Session identifies the caller of a ledger operation.
type Session struct {
	UserID  string
	IsAdmin bool
}
