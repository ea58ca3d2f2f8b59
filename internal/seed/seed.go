// Package seed bulk-loads students and administrators. Failures are logged and
// swallowed: this is an administrative tool, not a request path.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"olympiad-tracker/internal/models"
)

// UserStore is the part of db.DB the seeder writes to.
type UserStore interface {
	CreateStudent(ctx context.Context, username, fullName, group, password string) (*models.Student, error)
	CreateAdmin(ctx context.Context, username, fullName, password string) (*models.Admin, error)
	ListUsers(ctx context.Context) (*models.Users, error)
}

type Seeder struct {
	users UserStore
	log   logrus.FieldLogger
}

func NewSeeder(users UserStore, log logrus.FieldLogger) *Seeder {
	return &Seeder{users: users, log: log}
}

// AddStudent creates a student. password may be empty.
func (s *Seeder) AddStudent(ctx context.Context, username, fullName, group, password string) {
	student, err := s.users.CreateStudent(ctx, username, fullName, group, password)
	if err != nil {
		s.log.WithError(err).WithField("username", username).Error("failed to add student")
		return
	}
	s.log.WithFields(logrus.Fields{"id": student.ID, "username": username}).
		Infof("student %s added", fullName)
}

func (s *Seeder) AddAdmin(ctx context.Context, username, fullName, password string) {
	admin, err := s.users.CreateAdmin(ctx, username, fullName, password)
	if err != nil {
		s.log.WithError(err).WithField("username", username).Error("failed to add admin")
		return
	}
	s.log.WithFields(logrus.Fields{"id": admin.ID, "username": username}).
		Infof("admin %s added", fullName)
}

// File is the YAML layout read by LoadFile.
type File struct {
	Students []struct {
		Username string `yaml:"username"`
		FullName string `yaml:"full_name"`
		Group    string `yaml:"group"`
		Password string `yaml:"password"`
	} `yaml:"students"`
	Admins []struct {
		Username string `yaml:"username"`
		FullName string `yaml:"full_name"`
		Password string `yaml:"password"`
	} `yaml:"admins"`
}

// LoadFile adds every entry of a seed file. Only a missing or malformed file is
// returned as an error; individual entries follow AddStudent/AddAdmin.
func (s *Seeder) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}

	for _, st := range file.Students {
		s.AddStudent(ctx, st.Username, st.FullName, st.Group, st.Password)
	}
	for _, ad := range file.Admins {
		s.AddAdmin(ctx, ad.Username, ad.FullName, ad.Password)
	}
	return nil
}

// ShowAllUsers prints every student and admin to w.
func (s *Seeder) ShowAllUsers(ctx context.Context, w io.Writer) error {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Students:")
	for _, st := range users.Students {
		fmt.Fprintf(w, "  ID: %d, Login: %s, Name: %s, Group: %s\n", st.ID, st.Username, st.FullName, st.Group)
	}
	fmt.Fprintln(w, "\nAdmins:")
	for _, ad := range users.Admins {
		fmt.Fprintf(w, "  ID: %d, Login: %s, Name: %s\n", ad.ID, ad.Username, ad.FullName)
	}
	return nil
}
