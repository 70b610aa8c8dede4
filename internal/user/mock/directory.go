package usermock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openshop/identity/internal/serviceerr"
	"github.com/openshop/identity/internal/user"
)

type DirectoryOption func(*Directory)

type Directory struct {
	mu        sync.Mutex
	users     map[string]user.User
	customers map[string]user.Customer

	findErr, createErr error
}

func WithUser(u user.User) DirectoryOption {
	return func(d *Directory) { d.users[u.Subject] = u }
}
func WithFindError(err error) DirectoryOption {
	return func(d *Directory) { d.findErr = err }
}
func WithCreateError(err error) DirectoryOption {
	return func(d *Directory) { d.createErr = err }
}

var _ = user.Directory(&Directory{})

func NewInMemDirectory(opts ...DirectoryOption) *Directory {
	d := &Directory{
		users:     make(map[string]user.User),
		customers: make(map[string]user.Customer),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

func (d *Directory) FindBySubject(_ context.Context, subject string) (user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.findErr != nil {
		return user.User{}, d.findErr
	}
	if u, ok := d.users[subject]; ok {
		return u, nil
	}
	return user.User{}, serviceerr.ErrNotFound
}

func (d *Directory) FindByID(_ context.Context, id string) (user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.findErr != nil {
		return user.User{}, d.findErr
	}
	for _, u := range d.users {
		if u.ID == id {
			return u, nil
		}
	}
	return user.User{}, serviceerr.ErrNotFound
}

func (d *Directory) CreateUser(_ context.Context, u user.User) (user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.createErr != nil {
		return user.User{}, d.createErr
	}
	if _, ok := d.users[u.Subject]; ok {
		return user.User{}, serviceerr.ErrConflict
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	d.users[u.Subject] = u
	d.customers[u.ID] = user.Customer{ID: uuid.NewString(), UserID: u.ID, CreatedAt: u.CreatedAt}
	return u, nil
}

// Customer returns the customer profile created for userID.
func (d *Directory) Customer(userID string) (user.Customer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.customers[userID]
	return c, ok
}

// Len reports the number of users.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}
