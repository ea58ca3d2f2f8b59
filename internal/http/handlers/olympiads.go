package handlers

import (
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"olympiad-tracker/internal/attachments"
	"olympiad-tracker/internal/ledger"
	"olympiad-tracker/internal/models"
)

const invalidFormatDetail = "Invalid file format. Allowed: pdf, png, jpg, jpeg, gif"

// RecordLedger is implemented by *ledger.Ledger.
type RecordLedger interface {
	Append(rec models.Olympiad) (int, error)
	ListAll() ([]models.Olympiad, error)
	FindByID(id int) (*models.Olympiad, error)
}

type OlympiadHandler struct {
	records     RecordLedger
	files       attachments.Store
	validate    *validator.Validate
	log         logrus.FieldLogger
	maxFileSize int64
}

func NewOlympiadHandler(records RecordLedger, files attachments.Store, log logrus.FieldLogger) *OlympiadHandler {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("form")
	})
	validate.RegisterValidation("celltext", func(fl validator.FieldLevel) bool {
		return ledger.ValidText(fl.Field().String())
	})
	return &OlympiadHandler{
		records:     records,
		files:       files,
		validate:    validate,
		log:         log,
		maxFileSize: 32 << 20,
	}
}

// olympiadForm holds the text fields of the creation form. A spreadsheet cell
// holds at most 32767 characters and no control characters other than tab and
// line breaks.
type olympiadForm struct {
	Title       string `form:"title" validate:"required,max=32767,celltext"`
	Level       string `form:"level" validate:"required,max=32767,celltext"`
	Description string `form:"description" validate:"required,max=32767,celltext"`
	Venue       string `form:"venue" validate:"required,max=32767,celltext"`
	Date        string `form:"date" validate:"required,max=32767,celltext"`
	Organizer   string `form:"organizer" validate:"required,max=32767,celltext"`
	StudentID   int    `form:"student_id" validate:"gt=0"`
	AdminID     int    `form:"admin_id" validate:"gt=0"`
}

func (h *OlympiadHandler) parseForm(r *http.Request) (*olympiadForm, error) {
	form := &olympiadForm{
		Title:       r.PostFormValue("title"),
		Level:       r.PostFormValue("level"),
		Description: r.PostFormValue("description"),
		Venue:       r.PostFormValue("venue"),
		Date:        r.PostFormValue("date"),
		Organizer:   r.PostFormValue("organizer"),
	}

	var err error
	if form.StudentID, err = formInt(r, "student_id"); err != nil {
		return nil, err
	}
	if form.AdminID, err = formInt(r, "admin_id"); err != nil {
		return nil, err
	}

	if err := h.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, validationDetail(verrs)
		}
		return nil, err
	}
	return form, nil
}

func formInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.PostFormValue(name))
	if raw == "" {
		return 0, errors.Errorf("%s: field required", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Errorf("%s: value is not a valid integer", name)
	}
	return n, nil
}

func validationDetail(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: field required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s: at most %s characters", fe.Field(), fe.Param()))
		case "celltext":
			msgs = append(msgs, fmt.Sprintf("%s: contains control characters", fe.Field()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s: must be greater than %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Create stores the uploaded proof document and appends the record to the
// ledger. Nothing is written when the file extension is not allowed.
func (h *OlympiadHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	form, err := h.parseForm(r)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "file: field required")
		return
	}
	defer file.Close()

	ext, ok := attachments.ExtensionOf(header.Filename)
	if !ok || attachments.ValidateExtension(ext) != nil {
		respondError(w, http.StatusBadRequest, invalidFormatDetail)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	path, err := h.files.Store(r.Context(), data, ext)
	if err != nil {
		h.log.WithError(err).Error("failed to store attachment")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec := models.Olympiad{
		Title:       form.Title,
		Level:       form.Level,
		Description: form.Description,
		Venue:       form.Venue,
		Date:        form.Date,
		Organizer:   form.Organizer,
		StudentID:   form.StudentID,
		AdminID:     form.AdminID,
		FilePath:    path,
	}
	if rec.ID, err = h.records.Append(rec); err != nil {
		h.log.WithError(err).WithField("file_path", path).Warn("ledger append failed, attachment left orphaned")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.WithFields(logrus.Fields{
		"olympiad_id": rec.ID,
		"student_id":  rec.StudentID,
		"file_path":   path,
	}).Info("olympiad recorded")
	respondJSON(w, http.StatusOK, rec)
}

// File serves the attachment of one olympiad.
func (h *OlympiadHandler) File(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Olympiad not found")
		return
	}

	rec, err := h.records.FindByID(id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Olympiad not found")
			return
		}
		h.log.WithError(err).Error("failed to read ledger")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := h.files.Retrieve(r.Context(), rec.FilePath)
	if err != nil {
		if errors.Is(err, attachments.ErrNotFound) {
			respondError(w, http.StatusNotFound, "File not found")
			return
		}
		h.log.WithError(err).WithField("file_path", rec.FilePath).Error("failed to read attachment")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", attachments.ContentType(rec.FilePath))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
