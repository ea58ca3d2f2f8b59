package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"olympiad-tracker/internal/models"
)

// UserDirectory is the read side of the user store used by the admin views.
type UserDirectory interface {
	ListStudents(ctx context.Context) ([]models.Student, error)
	ListAdmins(ctx context.Context) ([]models.Admin, error)
}

type AdminHandler struct {
	users   UserDirectory
	records RecordLedger
	log     logrus.FieldLogger
}

func NewAdminHandler(users UserDirectory, records RecordLedger, log logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{users: users, records: records, log: log}
}

type adminSummary struct {
	ID       int    `json:"id"`
	FullName string `json:"full_name"`
}

func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.users.ListAdmins(r.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to list admins")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := make([]adminSummary, 0, len(admins))
	for _, admin := range admins {
		result = append(result, adminSummary{ID: admin.ID, FullName: admin.FullName})
	}
	respondJSON(w, http.StatusOK, result)
}

// ListOlympiads returns every ledger row together with its student's name and
// group. Rows whose student id does not resolve are left out.
func (h *AdminHandler) ListOlympiads(w http.ResponseWriter, r *http.Request) {
	records, err := h.records.ListAll()
	if err != nil {
		h.log.WithError(err).Error("failed to read ledger")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	students, err := h.users.ListStudents(r.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to list students")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byID := make(map[int]models.Student, len(students))
	for _, student := range students {
		byID[student.ID] = student
	}

	result := make([]models.OlympiadWithStudent, 0, len(records))
	for _, rec := range records {
		student, ok := byID[rec.StudentID]
		if !ok {
			h.log.WithFields(logrus.Fields{"olympiad_id": rec.ID, "student_id": rec.StudentID}).
				Debug("skipping olympiad with unknown student")
			continue
		}
		result = append(result, models.OlympiadWithStudent{
			Olympiad:        rec,
			StudentFullName: student.FullName,
			StudentGroup:    student.Group,
		})
	}
	respondJSON(w, http.StatusOK, result)
}
