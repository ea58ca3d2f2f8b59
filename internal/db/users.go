package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"olympiad-tracker/internal/models"
	"olympiad-tracker/internal/security"
)

// CreateStudent inserts a student. An empty password leaves password_hash NULL,
// so the account cannot log in.
func (db *DB) CreateStudent(ctx context.Context, username, fullName, group, password string) (*models.Student, error) {
	var hash sql.NullString
	if password != "" {
		h, err := security.HashPassword(password)
		if err != nil {
			return nil, err
		}
		hash = sql.NullString{String: h, Valid: true}
	}

	query := `INSERT INTO students (username, full_name, "group", password_hash) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int
	if err := db.QueryRowContext(ctx, query, username, fullName, group, hash).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrapf(ErrUsernameTaken, "student %q", username)
		}
		return nil, errors.Wrap(err, "insert student")
	}

	return &models.Student{
		ID:           id,
		Username:     username,
		FullName:     fullName,
		Group:        group,
		PasswordHash: hash.String,
	}, nil
}

func (db *DB) CreateAdmin(ctx context.Context, username, fullName, password string) (*models.Admin, error) {
	if password == "" {
		return nil, ErrPasswordRequired
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO admins (username, full_name, password_hash) VALUES ($1, $2, $3) RETURNING id`
	var id int
	if err := db.QueryRowContext(ctx, query, username, fullName, hash).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrapf(ErrUsernameTaken, "admin %q", username)
		}
		return nil, errors.Wrap(err, "insert admin")
	}

	return &models.Admin{ID: id, Username: username, FullName: fullName, PasswordHash: hash}, nil
}

const (
	studentColumns = `id, username, full_name, "group", password_hash`
	adminColumns   = `id, username, full_name, password_hash`
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStudent(row rowScanner) (*models.Student, error) {
	var student models.Student
	var hash sql.NullString
	if err := row.Scan(&student.ID, &student.Username, &student.FullName, &student.Group, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan student")
	}
	student.PasswordHash = hash.String
	return &student, nil
}

func scanAdmin(row rowScanner) (*models.Admin, error) {
	var admin models.Admin
	if err := row.Scan(&admin.ID, &admin.Username, &admin.FullName, &admin.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan admin")
	}
	return &admin, nil
}

func (db *DB) GetStudentByUsername(ctx context.Context, username string) (*models.Student, error) {
	row := db.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM students WHERE username = $1", username)
	return scanStudent(row)
}

func (db *DB) GetStudentByID(ctx context.Context, id int) (*models.Student, error) {
	row := db.QueryRowContext(ctx, "SELECT "+studentColumns+" FROM students WHERE id = $1", id)
	return scanStudent(row)
}

func (db *DB) GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	row := db.QueryRowContext(ctx, "SELECT "+adminColumns+" FROM admins WHERE username = $1", username)
	return scanAdmin(row)
}

func (db *DB) ListStudents(ctx context.Context) ([]models.Student, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+studentColumns+" FROM students ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "list students")
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *student)
	}
	return students, errors.Wrap(rows.Err(), "list students")
}

func (db *DB) ListAdmins(ctx context.Context) ([]models.Admin, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+adminColumns+" FROM admins ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "list admins")
	}
	defer rows.Close()

	var admins []models.Admin
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, *admin)
	}
	return admins, errors.Wrap(rows.Err(), "list admins")
}

// ListUsers returns every student and every admin.
func (db *DB) ListUsers(ctx context.Context) (*models.Users, error) {
	students, err := db.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	admins, err := db.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Users{Students: students, Admins: admins}, nil
}
