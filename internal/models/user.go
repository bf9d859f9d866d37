package models

// User is the signed-in profile. A nil *User means guest.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Clone returns a copy of u, or nil for a guest
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
