package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"html"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/lot-auction/internal/config"
	"github.com/iliyamo/lot-auction/internal/database"
	"github.com/iliyamo/lot-auction/internal/model"
	"github.com/iliyamo/lot-auction/internal/queue"
	"github.com/iliyamo/lot-auction/internal/repository"
	"github.com/iliyamo/lot-auction/internal/router"
)

const csrfToken = "test-csrf-token"

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.LotEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.LotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type testApp struct {
	e      *echo.Echo
	db     *sql.DB
	static string
	events *recordingPublisher
}

func newApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db, "sqlite"))

	static := t.TempDir()
	events := &recordingPublisher{}
	e, err := router.New(router.Deps{
		Cfg: config.Config{
			SessionSecret:  "test-secret",
			SessionTTL:     time.Hour,
			BcryptCost:     bcrypt.MinCost,
			StaticDir:      static,
			MaxUploadBytes: 1 << 20,
		},
		DB:     db,
		Events: events,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return &testApp{e: e, db: db, static: static, events: events}
}

// client is a browser stand-in that keeps cookies between requests.
type client struct {
	app     *testApp
	cookies map[string]*http.Cookie
}

func (a *testApp) client() *client {
	return &client{app: a, cookies: map[string]*http.Cookie{
		"_csrf": {Name: "_csrf", Value: csrfToken},
	}}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	rec := httptest.NewRecorder()
	c.app.e.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) post(path string, vals url.Values) *httptest.ResponseRecorder {
	if vals == nil {
		vals = url.Values{}
	}
	vals.Set("_csrf", csrfToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return c.do(req)
}

func (c *client) postMultipart(t *testing.T, path string, fields map[string]string, fileField, fileName string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("_csrf", csrfToken))
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return c.do(req)
}

// follow issues the GET a redirect points to.
func (c *client) follow(t *testing.T, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, rec.Code)
	return c.get(rec.Header().Get(echo.HeaderLocation))
}

func registration(email string) url.Values {
	return url.Values{
		"first_name":       {"Lesya"},
		"last_name":        {"Ukrainka"},
		"middle_name":      {"Petrivna"},
		"email":            {email},
		"password":         {"secret-pass"},
		"confirm_password": {"secret-pass"},
	}
}

func (c *client) registerAndLogin(t *testing.T, email string) {
	t.Helper()
	rec := c.post("/register", registration(email))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	rec = c.post("/login", url.Values{"email": {email}, "password": {"secret-pass"}})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
}

func (a *testApp) userID(t *testing.T, email string) uint64 {
	t.Helper()
	u, err := repository.NewUserRepo(a.db).GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return u.ID
}

func (a *testApp) createLot(t *testing.T, owner uint64, title string) *model.Lot {
	t.Helper()
	l := &model.Lot{Title: title, Description: "desc", Price: 100, UserID: owner}
	require.NoError(t, repository.NewLotRepo(a.db).Create(context.Background(), l))
	return l
}

func (a *testApp) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, a.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestRegisterThenLoginOpensProfile(t *testing.T) {
	app := newApp(t)
	c := app.client()

	rec := c.post("/register", registration("lesya@example.com"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	assert.Contains(t, c.follow(t, rec).Body.String(), "Registration successful")

	rec = c.post("/login?next=/profile", url.Values{"email": {"Lesya@Example.com"}, "password": {"secret-pass"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile", rec.Header().Get(echo.HeaderLocation))
	require.Contains(t, c.cookies, "session")

	profile := c.get("/profile")
	require.Equal(t, http.StatusOK, profile.Code)
	assert.Contains(t, profile.Body.String(), "Ukrainka Lesya Petrivna")
	assert.Contains(t, profile.Body.String(), "lesya@example.com")
}

func TestLoginRejectsBadCredentialsGenerically(t *testing.T) {
	app := newApp(t)
	c := app.client()
	require.Equal(t, http.StatusSeeOther, c.post("/register", registration("a@example.com")).Code)

	for _, creds := range []url.Values{
		{"email": {"a@example.com"}, "password": {"wrong"}},
		{"email": {"nobody@example.com"}, "password": {"secret-pass"}},
	} {
		rec := c.post("/login", creds)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid email or password")
		assert.NotContains(t, c.cookies, "session")
	}
}

func TestLoginIgnoresOffsiteNext(t *testing.T) {
	app := newApp(t)
	c := app.client()
	require.Equal(t, http.StatusSeeOther, c.post("/register", registration("a@example.com")).Code)
	for _, next := range []string{"//evil.example", "/\t/evil.example", "https://evil.example/"} {
		rec := c.post("/login?next="+url.QueryEscape(next), url.Values{"email": {"a@example.com"}, "password": {"secret-pass"}})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation), next)
	}
}

func TestRegisterDuplicateEmailRejected(t *testing.T) {
	app := newApp(t)
	c := app.client()

	require.Equal(t, http.StatusSeeOther, c.post("/register", registration("dup@example.com")).Code)
	rec := c.post("/register", registration("DUP@example.com"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already registered.")
	assert.Equal(t, 1, app.count(t, "users"))
}

func TestRegisterValidationErrors(t *testing.T) {
	app := newApp(t)
	c := app.client()

	vals := registration("not-an-email")
	vals.Set("confirm_password", "other")
	vals.Del("middle_name")
	rec := c.post("/register", vals)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Invalid email address.")
	assert.Contains(t, body, "Field must be equal to password.")
	assert.Contains(t, body, "This field is required.")
	assert.NotContains(t, body, "secret-pass")
	assert.Equal(t, 0, app.count(t, "users"))
}

func TestRegisterStoresPhoto(t *testing.T) {
	app := newApp(t)
	c := app.client()

	fields := map[string]string{}
	for k, v := range registration("photo@example.com") {
		fields[k] = v[0]
	}
	rec := c.postMultipart(t, "/register", fields, "photo", "me.png", []byte("png-bytes"))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	raw, err := os.ReadFile(filepath.Join(app.static, "photos", "me.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(raw))

	u, err := repository.NewUserRepo(app.db).GetByEmail(context.Background(), "photo@example.com")
	require.NoError(t, err)
	assert.Equal(t, "me.png", u.Photo)
}

func TestCreateLotRequiresLogin(t *testing.T) {
	app := newApp(t)
	c := app.client()

	rec := c.post("/create_lot", url.Values{"title": {"Sword"}, "description": {"old"}, "price": {"10"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/login"))
	assert.Equal(t, 0, app.count(t, "lots"))

	rec = c.get("/create_lot")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fcreate_lot", rec.Header().Get(echo.HeaderLocation))
	assert.Contains(t, c.follow(t, rec).Body.String(), "Please log in to access this page.")
}

func TestCreateLotWithImage(t *testing.T) {
	app := newApp(t)
	c := app.client()
	c.registerAndLogin(t, "seller@example.com")

	rec := c.postMultipart(t, "/create_lot", map[string]string{
		"title":       "Cossack sabre",
		"description": "19th century",
		"price":       "1250,50",
		"category":    string(model.CategoryBefore1918),
	}, "image", "sabre.jpg", []byte("jpeg"))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/profile", rec.Header().Get(echo.HeaderLocation))

	lots, err := repository.NewLotRepo(app.db).ListByUser(context.Background(), app.userID(t, "seller@example.com"))
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, 1250.5, lots[0].Price)
	assert.Equal(t, "sabre.jpg", lots[0].Image)
	assert.Equal(t, model.CategoryBefore1918, lots[0].Category)
	assert.FileExists(t, filepath.Join(app.static, "images", "sabre.jpg"))

	profile := c.follow(t, rec).Body.String()
	assert.Contains(t, profile, "Lot created")
	assert.Contains(t, profile, "Cossack sabre")

	assert.Eventually(t, func() bool {
		return len(app.events.types()) == 1 && app.events.types()[0] == queue.LotCreated
	}, time.Second, 10*time.Millisecond)
}

func TestCreateLotValidation(t *testing.T) {
	app := newApp(t)
	c := app.client()
	c.registerAndLogin(t, "seller@example.com")

	rec := c.post("/create_lot", url.Values{"title": {"Helmet"}, "description": {"steel"}, "price": {"-3"}, "category": {"Nope"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Price cannot be negative.")
	assert.Contains(t, rec.Body.String(), "Not a valid choice.")

	rec = c.post("/create_lot", url.Values{"title": {"Helmet"}, "description": {"steel"}, "price": {"cheap"}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not a valid float value.")
	assert.Equal(t, 0, app.count(t, "lots"))
}

func TestSaveLotTwiceKeepsOneRow(t *testing.T) {
	app := newApp(t)
	c := app.client()
	c.registerAndLogin(t, "buyer@example.com")
	lot := app.createLot(t, app.userID(t, "buyer@example.com"), "Sword")

	path := "/save_lot/" + itoa(lot.ID)
	rec := c.post(path, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
	assert.Contains(t, c.follow(t, rec).Body.String(), html.EscapeString(`Lot "Sword" saved!`))

	rec = c.post(path, nil)
	assert.Contains(t, c.follow(t, rec).Body.String(), html.EscapeString(`Lot "Sword" is already saved.`))
	assert.Equal(t, 1, app.count(t, "saved_lots"))

	saved := c.get("/saved_lots")
	require.Equal(t, http.StatusOK, saved.Code)
	assert.Contains(t, saved.Body.String(), "Sword")

	rec = c.post("/save_lot/999", nil)
	assert.Contains(t, c.follow(t, rec).Body.String(), "Lot not found")

	rec = c.post("/unsave_lot/"+itoa(lot.ID), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/saved_lots", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, 0, app.count(t, "saved_lots"))
}

func TestSearchIsCaseSensitiveSubstring(t *testing.T) {
	app := newApp(t)
	c := app.client()
	c.registerAndLogin(t, "s@example.com")
	uid := app.userID(t, "s@example.com")
	for _, title := range []string{"Sword of Kyiv", "sword", "Old Sword", "Helmet"} {
		app.createLot(t, uid, title)
	}

	body := c.get("/?query=Sword").Body.String()
	assert.Contains(t, body, ">Sword of Kyiv</a>")
	assert.Contains(t, body, ">Old Sword</a>")
	assert.NotContains(t, body, ">sword</a>")
	assert.NotContains(t, body, ">Helmet</a>")

	for _, path := range []string{"/", "/?query="} {
		body = c.get(path).Body.String()
		for _, title := range []string{"Sword of Kyiv", "sword", "Old Sword", "Helmet"} {
			assert.Contains(t, body, ">"+title+"</a>", path)
		}
	}
}

func TestViewLot(t *testing.T) {
	app := newApp(t)
	c := app.client()
	c.registerAndLogin(t, "owner@example.com")
	lot := app.createLot(t, app.userID(t, "owner@example.com"), "Medal")

	anon := app.client()
	rec := anon.get("/lot/" + itoa(lot.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Medal")
	assert.Contains(t, rec.Body.String(), "Ukrainka Lesya Petrivna")

	for _, path := range []string{"/lot/999", "/lot/abc"} {
		rec = anon.get(path)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Lot not found", rec.Body.String())
	}
}

func TestDeleteLot(t *testing.T) {
	app := newApp(t)
	owner := app.client()
	owner.registerAndLogin(t, "owner@example.com")
	other := app.client()
	other.registerAndLogin(t, "other@example.com")
	lot := app.createLot(t, app.userID(t, "owner@example.com"), "Bayonet")

	rec := owner.post("/delete_lot/999", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, owner.follow(t, rec).Body.String(), "Lot not found")
	assert.Equal(t, 1, app.count(t, "lots"))

	rec = other.post("/delete_lot/"+itoa(lot.ID), nil)
	assert.Contains(t, other.follow(t, rec).Body.String(), "You can only delete your own lots")
	assert.Equal(t, 1, app.count(t, "lots"))

	require.Equal(t, http.StatusSeeOther, other.post("/save_lot/"+itoa(lot.ID), nil).Code)
	rec = owner.post("/delete_lot/"+itoa(lot.ID), nil)
	assert.Equal(t, "/profile", rec.Header().Get(echo.HeaderLocation))
	assert.Contains(t, owner.follow(t, rec).Body.String(), "Lot deleted")
	assert.Equal(t, 0, app.count(t, "lots"))
	assert.Equal(t, 0, app.count(t, "saved_lots"))

	anon := app.client()
	rec = anon.post("/delete_lot/1", nil)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/login"))
}

func TestLogoutRevokesSession(t *testing.T) {
	app := newApp(t)
	c := app.client()
	c.registerAndLogin(t, "bye@example.com")
	stolen := *c.cookies["session"]

	rec := c.get("/logout")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotContains(t, c.cookies, "session")

	replay := app.client()
	replay.cookies["session"] = &stolen
	rec = replay.get("/profile")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/login"))
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	app := newApp(t)
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.c&password=x"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusForbidden}, rec.Code)
}

func TestHealthAndRules(t *testing.T) {
	app := newApp(t)
	c := app.client()
	rec := c.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = c.get("/rules")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Auction rules")
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }

func TestRejectedRegistrationLeavesPhotosAlone(t *testing.T) {
	app := newApp(t)
	c := app.client()
	photo := filepath.Join(app.static, "photos", "me.png")

	fields := map[string]string{}
	for k, v := range registration("first@example.com") {
		fields[k] = v[0]
	}
	rec := c.postMultipart(t, "/register", fields, "photo", "me.png", []byte("first-user"))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

	longPassword := strings.Repeat("ж", 40)
	fields["email"] = "second@example.com"
	fields["password"], fields["confirm_password"] = longPassword, longPassword
	rec = c.postMultipart(t, "/register", fields, "photo", "me.png", []byte("rejected-user"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Must be at most 72 bytes.")

	fields["email"] = "first@example.com"
	fields["password"], fields["confirm_password"] = "secret-pass", "secret-pass"
	rec = c.postMultipart(t, "/register", fields, "photo", "me.png", []byte("duplicate-user"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	raw, err := os.ReadFile(photo)
	require.NoError(t, err)
	assert.Equal(t, "first-user", string(raw))
	assert.Equal(t, 1, app.count(t, "users"))
}

func TestLogoutEverywhereRevokesAllSessions(t *testing.T) {
	app := newApp(t)
	laptop := app.client()
	laptop.registerAndLogin(t, "many@example.com")
	phone := app.client()
	rec := phone.post("/login", url.Values{"email": {"many@example.com"}, "password": {"secret-pass"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = laptop.post("/logout_all", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, laptop.follow(t, rec).Body.String(), "You have been logged out on all devices.")

	for _, c := range []*client{laptop, phone} {
		rec = c.get("/profile")
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderLocation), "/login"))
	}
}

func TestProfileShowsSavedCount(t *testing.T) {
	app := newApp(t)
	c := app.client()
	c.registerAndLogin(t, "counter@example.com")
	uid := app.userID(t, "counter@example.com")
	for _, title := range []string{"Flask", "Canteen"} {
		lot := app.createLot(t, uid, title)
		require.Equal(t, http.StatusSeeOther, c.post("/save_lot/"+itoa(lot.ID), nil).Code)
	}

	body := c.get("/profile").Body.String()
	assert.Contains(t, body, "Saved lots: 2")
	assert.Contains(t, body, ">Canteen</a>")
}
