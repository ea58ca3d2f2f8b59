package models

// Kind tells which table an identity was found in.
type Kind string

const (
	KindStudent Kind = "student"
	KindAdmin   Kind = "admin"
)

type Student struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	Group        string `json:"group"`
	PasswordHash string `json:"-"` // empty when no password was set
}

type Admin struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	PasswordHash string `json:"-"`
}

// Users is the read-only listing of both identity kinds.
type Users struct {
	Students []Student `json:"students"`
	Admins   []Admin   `json:"admins"`
}
