package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/postly/postly/config"
	"github.com/postly/postly/middleware"
	"github.com/postly/postly/models"
	"github.com/postly/postly/utils"
)

type userTestEnv struct {
	db     *gorm.DB
	router *gin.Engine
}

func newUserTestEnv(t *testing.T) *userTestEnv {
	t.Helper()
	config.SetForTesting(config.AppConfig{JWTSecret: "test-secret", UploadDir: t.TempDir()})

	env := &userTestEnv{db: newTestDB(t)}
	uc := NewUserController(env.db)

	r := gin.New()
	users := r.Group("/api/users")
	users.GET("", uc.ListUsers)
	users.POST("/signup", uc.Signup)
	users.POST("/login", uc.Login)
	users.POST("/logout", middleware.AuthRequired(), uc.Logout)

	// probe route exercising the real auth gate with issued tokens
	r.GET("/whoami", middleware.AuthRequired(), func(ctx *gin.Context) {
		id, _ := ctx.Get(middleware.ContextUserIDKey)
		ctx.JSON(http.StatusOK, gin.H{"id": id})
	})

	env.router = r
	return env
}

func (e *userTestEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *userTestEnv) signup(t *testing.T, name, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartForm(t, map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/users/signup", body)
	req.Header.Set("Content-Type", contentType)
	return e.do(req)
}

func (e *userTestEnv) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		t.Fatalf("marshal login payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

type authPayload struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) authPayload {
	t.Helper()
	var payload authPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode auth response: %v (body %s)", err, rec.Body.String())
	}
	return payload
}

func TestSignupIssuesAcceptedToken(t *testing.T) {
	env := newUserTestEnv(t)

	rec := env.signup(t, "Alice", "Alice@Example.com", "s3cret")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	signupAuth := decodeAuth(t, rec)
	if signupAuth.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized alice@example.com", signupAuth.Email)
	}
	if signupAuth.Token == "" {
		t.Fatal("no token issued")
	}

	claims, err := utils.ParseToken(signupAuth.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != signupAuth.UserID {
		t.Errorf("token user = %d, body userId = %d", claims.UserID, signupAuth.UserID)
	}

	// the signup token passes the auth gate
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signupAuth.Token)
	whoRec := env.do(req)
	if whoRec.Code != http.StatusOK {
		t.Fatalf("whoami status = %d (body %s)", whoRec.Code, whoRec.Body.String())
	}

	// login against the same account yields the same identity
	loginRec := env.login(t, "alice@example.com", "s3cret")
	if loginRec.Code != http.StatusCreated {
		t.Fatalf("login status = %d, want 201 (body %s)", loginRec.Code, loginRec.Body.String())
	}
	loginAuth := decodeAuth(t, loginRec)
	if loginAuth.UserID != signupAuth.UserID {
		t.Errorf("login userId = %d, signup userId = %d", loginAuth.UserID, signupAuth.UserID)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newUserTestEnv(t)

	if rec := env.signup(t, "Alice", "alice@example.com", "s3cret"); rec.Code != http.StatusCreated {
		t.Fatalf("first signup failed: %d", rec.Code)
	}
	// same address in different case must still conflict
	rec := env.signup(t, "Imposter", "ALICE@example.COM", "other4")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 conflict", rec.Code)
	}

	var count int64
	env.db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("user count = %d, want 1", count)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newUserTestEnv(t)

	cases := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"empty name", "", "a@b.com", "s3cret"},
		{"bad email", "Alice", "not-an-email", "s3cret"},
		{"short password", "Alice", "a@b.com", "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.signup(t, tc.userName, tc.email, tc.password)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rec.Code)
			}
		})
	}

	var count int64
	env.db.Model(&models.User{}).Count(&count)
	if count != 0 {
		t.Errorf("%d users created from invalid input", count)
	}
}

func TestSignupPasswordLengthCountsRunes(t *testing.T) {
	env := newUserTestEnv(t)

	// three runes, six bytes: too short regardless of encoding width
	if rec := env.signup(t, "Alice", "alice@example.com", "äöü"); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("3-rune password: status = %d, want 422", rec.Code)
	}
	// four runes pass even though they exceed four bytes
	if rec := env.signup(t, "Bob", "bob@example.com", "äöüß"); rec.Code != http.StatusCreated {
		t.Errorf("4-rune password: status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestLoginUniformCredentialErrors(t *testing.T) {
	env := newUserTestEnv(t)
	if rec := env.signup(t, "Alice", "alice@example.com", "s3cret"); rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d", rec.Code)
	}

	wrongPassword := env.login(t, "alice@example.com", "wrong!")
	unknownEmail := env.login(t, "nobody@example.com", "s3cret")

	if wrongPassword.Code != http.StatusForbidden {
		t.Errorf("wrong password status = %d, want 403", wrongPassword.Code)
	}
	if unknownEmail.Code != http.StatusForbidden {
		t.Errorf("unknown email status = %d, want 403", unknownEmail.Code)
	}
	// identical shape: neither response may reveal which field was wrong
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Errorf("responses differ:\n%s\n%s", wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestLoginValidatesEmail(t *testing.T) {
	env := newUserTestEnv(t)
	rec := env.login(t, "not-an-email", "whatever")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestListUsersExcludesPassword(t *testing.T) {
	env := newUserTestEnv(t)
	if rec := env.signup(t, "Alice", "alice@example.com", "s3cret"); rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d", rec.Code)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/users", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(strings.ToLower(body), "password") {
		t.Errorf("user listing leaks password material: %s", body)
	}
	var payload struct {
		Users []map[string]any `json:"users"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Users) != 1 {
		t.Errorf("got %d users, want 1", len(payload.Users))
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newUserTestEnv(t)
	rec := env.signup(t, "Alice", "alice@example.com", "s3cret")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d", rec.Code)
	}
	auth := decodeAuth(t, rec)

	req := httptest.NewRequest(http.MethodPost, "/api/users/logout", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	if out := env.do(req); out.Code != http.StatusOK {
		t.Fatalf("logout status = %d (body %s)", out.Code, out.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	if out := env.do(req); out.Code != http.StatusForbidden {
		t.Errorf("revoked token still accepted: status = %d", out.Code)
	}
}
