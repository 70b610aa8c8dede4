package user

import "context"

// Directory resolves users by their external subject or local id.
type Directory interface {
	// FindBySubject returns serviceerr.ErrNotFound when no user has the subject.
	FindBySubject(ctx context.Context, subject string) (User, error)
	// FindByID returns serviceerr.ErrNotFound when no user has the id.
	FindByID(ctx context.Context, id string) (User, error)
	// CreateUser stores the user and its customer profile. It returns
	// serviceerr.ErrConflict when the subject is already taken.
	CreateUser(ctx context.Context, u User) (User, error)
}
