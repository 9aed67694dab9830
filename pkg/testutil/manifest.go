// Package testutil provides common testing utilities, including an in-memory
// Manifest backend served over httptest.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// Demo credentials seeded into every FakeManifest.
const (
	DemoName     = "Demo Customer"
	DemoEmail    = "customer@demo.com"
	DemoPassword = "password"
)

var fakeSigningKey = []byte("fake-manifest-signing-key")

// FakeUser is a user record held by FakeManifest.
type FakeUser struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	password  string
}

// FakeRestaurant is a restaurant record held by FakeManifest.
type FakeRestaurant struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Address     string            `json:"address"`
	Cuisine     string            `json:"cuisine"`
	HeroImage   map[string]string `json:"heroImage,omitempty"`
	Owner       *FakeUser         `json:"owner,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	ownerID     int
}

type injectedFailure struct {
	status  int
	message string
}

// FakeManifest emulates the subset of the Manifest REST API used by FoodApp.
type FakeManifest struct {
	Server *httptest.Server

	mu          sync.Mutex
	users       map[int]*FakeUser
	restaurants []*FakeRestaurant
	nextID      int
	clock       time.Time
	calls       map[string]int
	failures    map[string][]injectedFailure
	healthFails int
	hold        map[string]chan struct{}
}

// NewFakeManifest starts a fake backend seeded with the demo user. The server
// is closed when the test ends.
func NewFakeManifest(t testing.TB) *FakeManifest {
	t.Helper()

	f := &FakeManifest{
		users:    make(map[int]*FakeUser),
		clock:    time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		calls:    make(map[string]int),
		failures: make(map[string][]injectedFailure),
		hold:     make(map[string]chan struct{}),
	}
	f.AddUser(DemoName, DemoEmail, DemoPassword)

	r := mux.NewRouter()
	r.HandleFunc("/api/health", f.route("health", f.handleHealth)).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/{entity}/login", f.route("login", f.handleLogin)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/{entity}/signup", f.route("signup", f.handleSignup)).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/{entity}/me", f.route("me", f.handleMe)).Methods(http.MethodGet)
	r.HandleFunc("/api/collections/{slug}", f.route("find", f.handleFind)).Methods(http.MethodGet)
	r.HandleFunc("/api/collections/{slug}", f.route("create", f.handleCreate)).Methods(http.MethodPost)
	r.HandleFunc("/api/upload/image", f.route("upload", f.handleUpload)).Methods(http.MethodPost)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake backend.
func (f *FakeManifest) URL() string {
	return f.Server.URL
}

// AddUser registers a user and returns its ID.
func (f *FakeManifest) AddUser(name, email, password string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(name, email, password).ID
}

func (f *FakeManifest) addUserLocked(name, email, password string) *FakeUser {
	f.nextID++
	u := &FakeUser{ID: f.nextID, Name: name, Email: email, CreatedAt: f.tick(), password: password}
	f.users[u.ID] = u
	return u
}

// UserByEmail returns the user registered with email, or nil.
func (f *FakeManifest) UserByEmail(email string) *FakeUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userByEmailLocked(email)
}

func (f *FakeManifest) userByEmailLocked(email string) *FakeUser {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

// TokenFor issues a valid token for the user with the given email.
func (f *FakeManifest) TokenFor(email string) string {
	u := f.UserByEmail(email)
	if u == nil {
		return ""
	}
	return f.issueToken(u.ID)
}

// FailNext makes the next call of route answer with status and message.
// Routes: health, login, signup, me, find, create, upload.
func (f *FakeManifest) FailNext(route string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = append(f.failures[route], injectedFailure{status: status, message: message})
}

// FailHealth makes the next n health checks fail with 503.
func (f *FakeManifest) FailHealth(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthFails = n
}

// Hold blocks calls of route until the returned release func is called.
func (f *FakeManifest) Hold(route string) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.hold[route] = ch
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.hold, route)
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many times route was requested.
func (f *FakeManifest) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// TotalCalls returns the number of requests across all routes.
func (f *FakeManifest) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// Restaurants returns a snapshot of stored restaurants in insertion order.
func (f *FakeManifest) Restaurants() []FakeRestaurant {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeRestaurant, 0, len(f.restaurants))
	for _, r := range f.restaurants {
		out = append(out, *r)
	}
	return out
}

// AddRestaurant stores a restaurant owned by ownerID directly.
func (f *FakeManifest) AddRestaurant(name, cuisine string, ownerID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r := &FakeRestaurant{
		ID:          f.nextID,
		Name:        name,
		Cuisine:     cuisine,
		Description: name + " description",
		Address:     "1 Main St",
		CreatedAt:   f.tick(),
		ownerID:     ownerID,
	}
	f.restaurants = append(f.restaurants, r)
	return r.ID
}

func (f *FakeManifest) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *FakeManifest) route(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[name]++
		hold := f.hold[name]
		var fail *injectedFailure
		if queue := f.failures[name]; len(queue) > 0 {
			fail = &queue[0]
			f.failures[name] = queue[1:]
		}
		f.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			writeError(w, fail.status, fail.message)
			return
		}
		next(w, r)
	}
}

func (f *FakeManifest) handleHealth(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	failing := f.healthFails > 0
	if failing {
		f.healthFails--
	}
	f.mu.Unlock()

	if failing {
		writeError(w, http.StatusServiceUnavailable, "backend starting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (f *FakeManifest) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	f.mu.Lock()
	u := f.userByEmailLocked(body.Email)
	f.mu.Unlock()
	if u == nil || u.password != body.Password {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": f.issueToken(u.ID)})
}

func (f *FakeManifest) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.Email == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message":    []string{"email should not be empty", "password should not be empty"},
			"statusCode": http.StatusBadRequest,
		})
		return
	}

	f.mu.Lock()
	if f.userByEmailLocked(body.Email) != nil {
		f.mu.Unlock()
		writeError(w, http.StatusBadRequest, "Email already exists")
		return
	}
	u := f.addUserLocked(body.Name, body.Email, body.Password)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"token": f.issueToken(u.ID)})
}

func (f *FakeManifest) handleMe(w http.ResponseWriter, r *http.Request) {
	u := f.authenticate(r)
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (f *FakeManifest) handleFind(w http.ResponseWriter, r *http.Request) {
	if f.authenticate(r) == nil {
		writeError(w, http.StatusForbidden, "Forbidden resource")
		return
	}

	q := r.URL.Query()
	withOwner := false
	for _, rel := range strings.Split(q.Get("relations"), ",") {
		if rel == "owner" {
			withOwner = true
		}
	}

	f.mu.Lock()
	items := make([]FakeRestaurant, 0, len(f.restaurants))
	for _, rec := range f.restaurants {
		item := *rec
		if withOwner {
			if owner, ok := f.users[rec.ownerID]; ok {
				cp := *owner
				item.Owner = &cp
			}
		}
		items = append(items, item)
	}
	f.mu.Unlock()

	if q.Get("orderBy") == "createdAt" {
		desc := strings.EqualFold(q.Get("order"), "DESC")
		sort.SliceStable(items, func(i, j int) bool {
			if desc {
				return items[i].CreatedAt.After(items[j].CreatedAt)
			}
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		})
	}

	perPage := 20
	if v, err := strconv.Atoi(q.Get("perPage")); err == nil && v > 0 {
		perPage = v
	}
	total := len(items)
	if len(items) > perPage {
		items = items[:perPage]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":        items,
		"currentPage": 1,
		"lastPage":    (total + perPage - 1) / perPage,
		"from":        1,
		"to":          len(items),
		"total":       total,
		"perPage":     perPage,
	})
}

func (f *FakeManifest) handleCreate(w http.ResponseWriter, r *http.Request) {
	if f.authenticate(r) == nil {
		writeError(w, http.StatusForbidden, "Forbidden resource")
		return
	}

	var body struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Address     string            `json:"address"`
		Cuisine     string            `json:"cuisine"`
		HeroImage   map[string]string `json:"heroImage"`
		OwnerID     json.Number       `json:"ownerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"message": []map[string]interface{}{
				{"property": "name", "constraints": map[string]string{"isNotEmpty": "name should not be empty"}},
			},
			"statusCode": http.StatusBadRequest,
		})
		return
	}
	ownerID, err := strconv.Atoi(body.OwnerID.String())

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[ownerID]; err != nil || !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("owner %q not found", body.OwnerID.String()))
		return
	}
	f.nextID++
	rec := &FakeRestaurant{
		ID:          f.nextID,
		Name:        body.Name,
		Description: body.Description,
		Address:     body.Address,
		Cuisine:     body.Cuisine,
		HeroImage:   body.HeroImage,
		CreatedAt:   f.tick(),
		ownerID:     ownerID,
	}
	f.restaurants = append(f.restaurants, rec)
	writeJSON(w, http.StatusCreated, rec)
}

func (f *FakeManifest) handleUpload(w http.ResponseWriter, r *http.Request) {
	if f.authenticate(r) == nil {
		writeError(w, http.StatusForbidden, "Forbidden resource")
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image is required")
		return
	}
	file.Close()

	base := fmt.Sprintf("%s/storage/%s/%s/%s", f.Server.URL, r.FormValue("entity"), r.FormValue("property"), header.Filename)
	writeJSON(w, http.StatusOK, map[string]string{
		"thumbnail": base + "-thumbnail",
		"large":     base + "-large",
	})
}

func (f *FakeManifest) issueToken(userID int) string {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(fakeSigningKey)
	if err != nil {
		panic(err)
	}
	return token
}

func (f *FakeManifest) authenticate(r *http.Request) *FakeUser {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" {
		return nil
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return fakeSigningKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"message": message, "statusCode": status})
}
