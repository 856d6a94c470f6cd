package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func failWith(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Fail(ctx, err)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not a JSON object: %v", err)
	}
	return rec, body
}

func TestFailStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", ErrValidation("bad input"), http.StatusUnprocessableEntity},
		{"authentication", ErrAuthentication(), http.StatusForbidden},
		{"authorization", ErrAuthorization("not yours"), http.StatusUnauthorized},
		{"not found", ErrNotFound("missing"), http.StatusNotFound},
		{"conflict", ErrConflict("duplicate"), http.StatusUnprocessableEntity},
		{"credentials", ErrInvalidCredentials(), http.StatusForbidden},
		{"store", ErrStore("db down"), http.StatusInternalServerError},
		{"untyped", errors.New("raw"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := failWith(t, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			if body["message"] == "" {
				t.Error("response has no message field")
			}
		})
	}
}

func TestFailHidesUntypedErrorDetail(t *testing.T) {
	_, body := failWith(t, errors.New("sql: connection refused"))
	if body["message"] != "An unknown error has occurred" {
		t.Errorf("message = %q leaks internal detail", body["message"])
	}
}
