package manifest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/R3E-Network/foodapp/pkg/testutil"
)

type restaurantRecord struct {
	ID        interface{}       `json:"id"`
	Name      string            `json:"name"`
	Cuisine   string            `json:"cuisine"`
	HeroImage map[string]string `json:"heroImage"`
	Owner     *struct {
		Name string `json:"name"`
	} `json:"owner"`
}

func newTestClient(t *testing.T, fake *testutil.FakeManifest) *Client {
	t.Helper()
	client, err := NewClient(Config{BaseURL: fake.URL() + "/", AppID: "app-1", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "foodapp.example.com"}); err == nil {
		t.Fatal("expected error for relative URL")
	}
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestLoginMeAndLogout(t *testing.T) {
	fake := testutil.NewFakeManifest(t)
	client := newTestClient(t, fake)
	ctx := context.Background()

	if err := client.Login(ctx, "users", testutil.DemoEmail, testutil.DemoPassword); err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if !client.HasToken() {
		t.Fatal("expected token after login")
	}

	var me struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := client.Me(ctx, "users", &me); err != nil {
		t.Fatalf("Me error: %v", err)
	}
	if me.Name != testutil.DemoName || me.Email != testutil.DemoEmail {
		t.Fatalf("Me = %+v", me)
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if err := client.Me(ctx, "users", &me); !errors.Is(err, ErrNoToken) {
		t.Fatalf("Me after logout err = %v, want ErrNoToken", err)
	}
	if got := fake.Calls("me"); got != 1 {
		t.Fatalf("me calls = %d, want 1", got)
	}
}

func TestLoginFailureDropsToken(t *testing.T) {
	fake := testutil.NewFakeManifest(t)
	client := newTestClient(t, fake).WithToken("stale")

	err := client.Login(context.Background(), "users", testutil.DemoEmail, "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "Invalid email or password" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if !IsUnauthorized(err) {
		t.Fatal("expected IsUnauthorized")
	}
	if client.HasToken() {
		t.Fatal("token should be dropped after failed login")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	fake := testutil.NewFakeManifest(t)
	client := newTestClient(t, fake)

	err := client.Signup(context.Background(), "users", map[string]interface{}{
		"name": "Someone", "email": testutil.DemoEmail, "password": "x",
	})
	if err == nil || !strings.Contains(err.Error(), "Email already exists") {
		t.Fatalf("err = %v, want duplicate email error", err)
	}
}

func TestFindSendsRelationsAndOrder(t *testing.T) {
	fake := testutil.NewFakeManifest(t)
	owner := fake.UserByEmail(testutil.DemoEmail)
	fake.AddRestaurant("First", "Thai", owner.ID)
	fake.AddRestaurant("Second", "Greek", owner.ID)

	client := newTestClient(t, fake).WithToken(fake.TokenFor(testutil.DemoEmail))

	var page Paginator[restaurantRecord]
	err := client.From("restaurants").Find(context.Background(), FindOptions{
		Relations: []string{"owner"},
		OrderBy:   "createdAt",
		Order:     Descending,
	}, &page)
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if len(page.Data) != 2 || page.Total != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Data[0].Name != "Second" {
		t.Fatalf("first = %q, want Second", page.Data[0].Name)
	}
	if page.Data[0].Owner == nil || page.Data[0].Owner.Name != testutil.DemoName {
		t.Fatalf("owner not embedded: %+v", page.Data[0])
	}
}

func TestFindOptionsQuery(t *testing.T) {
	q := FindOptions{Relations: []string{"owner", "menu"}, OrderBy: "name", Page: 2, PerPage: 50}.query()
	if q.Get("relations") != "owner,menu" || q.Get("order") != "ASC" || q.Get("page") != "2" || q.Get("perPage") != "50" {
		t.Fatalf("query = %v", q.Encode())
	}
	if len(FindOptions{}.query()) != 0 {
		t.Fatal("empty options should produce empty query")
	}
}

func TestCreateValidationMessageFromConstraints(t *testing.T) {
	fake := testutil.NewFakeManifest(t)
	client := newTestClient(t, fake).WithToken(fake.TokenFor(testutil.DemoEmail))

	err := client.From("restaurants").Create(context.Background(), map[string]interface{}{"cuisine": "Thai"}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != "name should not be empty" {
		t.Fatalf("Message = %q", apiErr.Message)
	}
}

func TestUploadImage(t *testing.T) {
	fake := testutil.NewFakeManifest(t)
	client := newTestClient(t, fake).WithToken(fake.TokenFor(testutil.DemoEmail))

	sizes, err := client.UploadImage(context.Background(), "restaurants", "heroImage", "front.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("UploadImage error: %v", err)
	}
	if !strings.HasSuffix(sizes["thumbnail"], "/restaurants/heroImage/front.jpg-thumbnail") {
		t.Fatalf("thumbnail = %q", sizes["thumbnail"])
	}
}

func TestHeadersAndObserver(t *testing.T) {
	var gotAppID, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAppID = r.Header.Get(appIDHeader)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var mu sync.Mutex
	var ops []string
	client, err := NewClient(Config{
		BaseURL: server.URL,
		AppID:   "app-1",
		Observer: func(op string, err error, _ time.Duration) {
			mu.Lock()
			ops = append(ops, op)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}

	if err := client.WithToken("tok").Health(context.Background(), ""); err != nil {
		t.Fatalf("Health error: %v", err)
	}
	if gotAppID != "app-1" || gotAuth != "Bearer tok" {
		t.Fatalf("headers app=%q auth=%q", gotAppID, gotAuth)
	}
	if len(ops) != 1 || ops[0] != "health" {
		t.Fatalf("observed ops = %v", ops)
	}
}

func TestMessageFromBody(t *testing.T) {
	cases := map[string]string{
		`{"message":"boom","statusCode":500}`: "boom",
		`{"message":["a","b"]}`:               "a; b",
		`{"error":"nope"}`:                    "nope",
		`upstream timeout`:                    "upstream timeout",
		`{"statusCode":500}`:                  "",
	}
	for body, want := range cases {
		if got := messageFromBody([]byte(body)); got != want {
			t.Errorf("messageFromBody(%s) = %q, want %q", body, got, want)
		}
	}
}
