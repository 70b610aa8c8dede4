package user

import "time"

// User is a local account bound to one external identity.
type User struct {
	ID         string
	Subject    string // Stable identifier issued by the identity provider
	Email      string
	GivenName  string
	FamilyName string
	PictureURL string
	CreatedAt  time.Time
}

// Customer is the shop profile created together with every user.
type Customer struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}
