package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"olympiad-tracker/internal/app"
	"olympiad-tracker/internal/config"
	"olympiad-tracker/internal/models"
)

type fixture struct {
	app     *app.App
	handler http.Handler
	student *models.Student
	admin   *models.Admin
}

func newFixture(t *testing.T, requireToken bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBDSN = filepath.Join(dir, "university.db")
	cfg.LedgerPath = filepath.Join(dir, "olympiads_data.xlsx")
	cfg.UploadDir = filepath.Join(dir, "uploads")
	cfg.RequireToken = requireToken

	logger, _ := test.NewNullLogger()
	a, err := app.New(cfg, logger)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	ctx := context.Background()
	student, err := a.DB.CreateStudent(ctx, "24000231", "Anastasia Ryazanova", "2-PMIb-1", "razanova150")
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	admin, err := a.DB.CreateAdmin(ctx, "admin1", "Olga Petrova", "admin123")
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	return &fixture{app: a, handler: Setup(a), student: student, admin: admin}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return f.do(req)
}

func olympiadRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		part.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart Close: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/olympiads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func olympiadFields(studentID, adminID string) map[string]string {
	return map[string]string{
		"title":       "Regional Mathematics Olympiad",
		"level":       "regional",
		"description": "Second stage",
		"venue":       "Main building",
		"date":        "12.03.2025",
		"organizer":   "Ministry of Education",
		"student_id":  studentID,
		"admin_id":    adminID,
	}
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func uploadCount(t *testing.T, f *fixture) int {
	t.Helper()
	entries, err := os.ReadDir(f.app.Config.UploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	return len(entries)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, false)

	rec := f.login(t, "24000231", "razanova150")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		UserType    string `json:"user_type"`
		FullName    string `json:"full_name"`
		ID          int    `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TokenType != "bearer" || resp.UserType != "student" || resp.ID != f.student.ID ||
		resp.FullName != "Anastasia Ryazanova" {
		t.Fatalf("unexpected response %+v", resp)
	}
	claims, err := f.app.Tokens.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "24000231" || claims.UserType != models.KindStudent {
		t.Fatalf("claims = %+v", claims)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatalf("expected a session cookie")
	}

	admin := f.login(t, "admin1", "admin123")
	if admin.Code != http.StatusOK || !strings.Contains(admin.Body.String(), `"user_type":"admin"`) {
		t.Fatalf("admin login: %d %s", admin.Code, admin.Body.String())
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t, false)

	for _, creds := range [][2]string{{"24000231", "wrong"}, {"nobody", "razanova150"}} {
		rec := f.login(t, creds[0], creds[1])
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%v: status = %d", creds, rec.Code)
		}
		if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Fatalf("WWW-Authenticate = %q", got)
		}
		if detail := decodeDetail(t, rec); detail != "Invalid credentials" {
			t.Fatalf("detail = %q", detail)
		}
	}
}

func TestListAdmins(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admins", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var admins []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &admins); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(admins) != 1 || admins[0]["full_name"] != "Olga Petrova" || len(admins[0]) != 2 {
		t.Fatalf("admins = %v", admins)
	}
}

func TestCreateOlympiad_AndDownloadFile(t *testing.T) {
	f := newFixture(t, false)
	content := []byte("%PDF-1.4 certificate")

	rec := f.do(olympiadRequest(t, olympiadFields("1", "1"), "diploma.pdf", content))
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created models.Olympiad
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID != 1 || created.Title != "Regional Mathematics Olympiad" || !strings.HasSuffix(created.FilePath, ".pdf") {
		t.Fatalf("created = %+v", created)
	}

	second := f.do(olympiadRequest(t, olympiadFields("1", "1"), "scan.PNG", []byte("png")))
	if !strings.Contains(second.Body.String(), `"id":2`) {
		t.Fatalf("second create: %d %s", second.Code, second.Body.String())
	}

	file := f.do(httptest.NewRequest(http.MethodGet, "/olympiads/1/file", nil))
	if file.Code != http.StatusOK {
		t.Fatalf("file status = %d", file.Code)
	}
	if ct := file.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !bytes.Equal(file.Body.Bytes(), content) {
		t.Fatalf("file body = %q", file.Body.String())
	}

	png := f.do(httptest.NewRequest(http.MethodGet, "/olympiads/2/file", nil))
	if ct := png.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q", ct)
	}
}

func TestCreateOlympiad_RejectsExtensionWithoutWriting(t *testing.T) {
	f := newFixture(t, false)

	for _, name := range []string{"virus.exe", "noextension"} {
		rec := f.do(olympiadRequest(t, olympiadFields("1", "1"), name, []byte("MZ")))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", name, rec.Code)
		}
		if detail := decodeDetail(t, rec); detail != "Invalid file format. Allowed: pdf, png, jpg, jpeg, gif" {
			t.Fatalf("detail = %q", detail)
		}
	}
	if n := uploadCount(t, f); n != 0 {
		t.Fatalf("%d files written", n)
	}
	records, err := f.app.Ledger.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("ledger has %d records", len(records))
	}
}

func TestCreateOlympiad_InvalidFields(t *testing.T) {
	f := newFixture(t, false)

	missing := olympiadFields("1", "1")
	delete(missing, "title")
	cases := map[string]map[string]string{
		"missing title":      missing,
		"non-numeric id":     olympiadFields("abc", "1"),
		"non-positive admin": olympiadFields("1", "0"),
	}
	for name, fields := range cases {
		rec := f.do(olympiadRequest(t, fields, "diploma.pdf", []byte("pdf")))
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status = %d, body %s", name, rec.Code, rec.Body.String())
		}
	}

	noFile := f.do(olympiadRequest(t, olympiadFields("1", "1"), "", nil))
	if noFile.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing file: status = %d", noFile.Code)
	}
	if n := uploadCount(t, f); n != 0 {
		t.Fatalf("%d files written", n)
	}
}

func TestAdminOlympiads_DropsUnknownStudents(t *testing.T) {
	f := newFixture(t, false)

	known := f.do(olympiadRequest(t, olympiadFields("1", "1"), "a.pdf", []byte("a")))
	unknown := f.do(olympiadRequest(t, olympiadFields("99", "1"), "b.pdf", []byte("b")))
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("create: %d, %d", known.Code, unknown.Code)
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/olympiads", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rows []models.OlympiadWithStudent
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].ID != 1 || rows[0].StudentFullName != "Anastasia Ryazanova" || rows[0].StudentGroup != "2-PMIb-1" {
		t.Fatalf("row = %+v", rows[0])
	}
}

func TestOlympiadFile_NotFound(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/olympiads/7/file", nil))
	if rec.Code != http.StatusNotFound || decodeDetail(t, rec) != "Olympiad not found" {
		t.Fatalf("unknown olympiad: %d %s", rec.Code, rec.Body.String())
	}

	created := f.do(olympiadRequest(t, olympiadFields("1", "1"), "a.pdf", []byte("a")))
	var o models.Olympiad
	if err := json.Unmarshal(created.Body.Bytes(), &o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := os.Remove(o.FilePath); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/olympiads/1/file", nil))
	if rec.Code != http.StatusNotFound || decodeDetail(t, rec) != "File not found" {
		t.Fatalf("removed file: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRoutesOpenByDefault(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/olympiads", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequireToken(t *testing.T) {
	f := newFixture(t, true)

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/admins", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}

	bad := httptest.NewRequest(http.MethodGet, "/admins", nil)
	bad.Header.Set("Authorization", "Bearer not-a-token")
	if rec := f.do(bad); rec.Code != http.StatusUnauthorized || decodeDetail(t, rec) != "Invalid token" {
		t.Fatalf("bad token: %d %s", rec.Code, rec.Body.String())
	}

	login := f.login(t, "admin1", "admin123")
	if login.Code != http.StatusOK {
		t.Fatalf("login status = %d", login.Code)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(login.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	bearer := httptest.NewRequest(http.MethodGet, "/admins", nil)
	bearer.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	if rec := f.do(bearer); rec.Code != http.StatusOK {
		t.Fatalf("bearer: status = %d", rec.Code)
	}

	cookie := httptest.NewRequest(http.MethodGet, "/olympiads/1/file", nil)
	for _, c := range login.Result().Cookies() {
		cookie.AddCookie(c)
	}
	if rec := f.do(cookie); rec.Code != http.StatusNotFound {
		t.Fatalf("cookie: status = %d, want 404 from the handler", rec.Code)
	}

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
		t.Fatalf("health: status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/olympiads", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := f.do(req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("Access-Control-Allow-Credentials = %q", got)
	}
}

func TestLogout_ClearsSessionCookie(t *testing.T) {
	f := newFixture(t, true)

	login := f.login(t, "24000231", "razanova150")
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := f.do(req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Logout successful") {
		t.Fatalf("logout: %d %s", rec.Code, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected an expired session cookie, got %+v", cookies)
	}
}

func TestCreateOlympiad_RejectsControlCharacters(t *testing.T) {
	f := newFixture(t, false)

	fields := olympiadFields("1", "1")
	fields["venue"] = "room\a301"
	rec := f.do(olympiadRequest(t, fields, "diploma.pdf", []byte("pdf")))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if detail := decodeDetail(t, rec); !strings.Contains(detail, "venue") {
		t.Fatalf("detail = %q", detail)
	}
	if n := uploadCount(t, f); n != 0 {
		t.Fatalf("%d files written", n)
	}
}

func TestCreateOlympiad_EscapeLikeTextSurvives(t *testing.T) {
	f := newFixture(t, false)

	fields := olympiadFields("1", "1")
	fields["title"] = "_x0041_ Olympiad"
	fields["description"] = "Round 1\r\nRound 2"
	if rec := f.do(olympiadRequest(t, fields, "diploma.pdf", []byte("pdf"))); rec.Code != http.StatusOK {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/admin/olympiads", nil))
	var rows []models.OlympiadWithStudent
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0].Title != "_x0041_ Olympiad" || rows[0].Description != "Round 1\r\nRound 2" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	f := newFixture(t, false)

	for _, body := range []string{`{}`, `{"username":"admin1"}`, `{"password":"admin123"}`} {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := f.do(req)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: status = %d", body, rec.Code)
		}
		if detail := decodeDetail(t, rec); !strings.Contains(detail, "field required") {
			t.Fatalf("%s: detail = %q", body, detail)
		}
	}

	empty := f.login(t, "", "")
	if empty.Code != http.StatusUnauthorized {
		t.Fatalf("empty credentials: status = %d", empty.Code)
	}
}

func TestUnmatchedRoutes_JSONErrors(t *testing.T) {
	f := newFixture(t, false)

	for _, path := range []string{"/olympiads/abc/file", "/nowhere"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d", path, rec.Code)
		}
		if detail := decodeDetail(t, rec); detail != "Not Found" {
			t.Fatalf("%s: detail = %q", path, detail)
		}
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/olympiads", nil))
	if rec.Code != http.StatusMethodNotAllowed || decodeDetail(t, rec) != "Method Not Allowed" {
		t.Fatalf("GET /olympiads: %d %s", rec.Code, rec.Body.String())
	}
}
