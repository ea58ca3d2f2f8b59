// Package auth verifies login credentials against the student and admin tables.
package auth

import (
	"context"

	"github.com/pkg/errors"

	"olympiad-tracker/internal/db"
	"olympiad-tracker/internal/models"
	"olympiad-tracker/internal/security"
)

// ErrInvalidCredentials is returned for an unknown username and for a wrong
// password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserLookup is the part of the user store the verifier needs.
type UserLookup interface {
	GetStudentByUsername(ctx context.Context, username string) (*models.Student, error)
	GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error)
}

// Identity is an authenticated user. Exactly one of Student and Admin is set.
type Identity struct {
	Kind    models.Kind
	Student *models.Student
	Admin   *models.Admin
}

func (i *Identity) ID() int {
	if i.Kind == models.KindStudent {
		return i.Student.ID
	}
	return i.Admin.ID
}

func (i *Identity) Username() string {
	if i.Kind == models.KindStudent {
		return i.Student.Username
	}
	return i.Admin.Username
}

func (i *Identity) FullName() string {
	if i.Kind == models.KindStudent {
		return i.Student.FullName
	}
	return i.Admin.FullName
}

type Authenticator struct {
	users UserLookup
}

func NewAuthenticator(users UserLookup) *Authenticator {
	return &Authenticator{users: users}
}

// Authenticate checks students first, then admins. A username present in both
// tables resolves to whichever account the password matches, the student winning
// when both do.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	student, err := a.users.GetStudentByUsername(ctx, username)
	switch {
	case err == nil:
		if security.ComparePasswords(student.PasswordHash, password) {
			return &Identity{Kind: models.KindStudent, Student: student}, nil
		}
	case !errors.Is(err, db.ErrNotFound):
		return nil, errors.Wrap(err, "lookup student")
	}

	admin, err := a.users.GetAdminByUsername(ctx, username)
	switch {
	case err == nil:
		if security.ComparePasswords(admin.PasswordHash, password) {
			return &Identity{Kind: models.KindAdmin, Admin: admin}, nil
		}
	case !errors.Is(err, db.ErrNotFound):
		return nil, errors.Wrap(err, "lookup admin")
	}

	return nil, ErrInvalidCredentials
}
