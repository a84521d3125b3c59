package model

// User is the signed-in identity record. Exactly one user may be current
// at a time; the record is cleared on sign-out.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}
