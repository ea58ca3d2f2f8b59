package models

// Olympiad is one ledger row.
type Olympiad struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Level       string `json:"level"`
	Description string `json:"description"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`
	Organizer   string `json:"organizer"`
	StudentID   int    `json:"student_id"`
	AdminID     int    `json:"admin_id"`
	FilePath    string `json:"file_path"`
}

// OlympiadWithStudent is a ledger row joined with the student it references.
type OlympiadWithStudent struct {
	Olympiad
	StudentFullName string `json:"student_full_name"`
	StudentGroup    string `json:"student_group"`
}
