package controllers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/postly/postly/config"
	"github.com/postly/postly/middleware"
	"github.com/postly/postly/models"
	"github.com/postly/postly/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	// A pooled in-memory sqlite gives every connection its own database;
	// pin to one connection so all statements share state.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Post{}, &models.Reaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// registerUserWriteFault installs a callback that fails any update touching
// the users table while the returned flag is set, to exercise transaction
// rollback paths.
func registerUserWriteFault(t *testing.T, db *gorm.DB) *bool {
	t.Helper()
	fail := false
	err := db.Callback().Update().Before("gorm:update").Register("test:fail_user_updates", func(tx *gorm.DB) {
		if fail && tx.Statement != nil && tx.Statement.Table == "users" {
			tx.AddError(errors.New("injected users write failure"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	return &fail
}

func seedUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := models.User{Name: name, Email: email, PasswordHash: hash, Image: "uploads/images/" + name + ".png"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedPost(t *testing.T, db *gorm.DB, creator *models.User, title, image string) *models.Post {
	t.Helper()
	post := models.Post{UserID: creator.ID, Title: title, Description: "some words", Image: image}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", creator.ID).
			UpdateColumn("post_count", gorm.Expr("post_count + ?", 1)).Error
	})
	if err != nil {
		t.Fatalf("seed post: %v", err)
	}
	return &post
}

// postTestEnv wires the post routes with an identity-injecting stand-in for
// the auth gate; set caller before each request.
type postTestEnv struct {
	db     *gorm.DB
	router *gin.Engine
	caller uint
}

func newPostTestEnv(t *testing.T) *postTestEnv {
	t.Helper()
	config.SetForTesting(config.AppConfig{JWTSecret: "test-secret", UploadDir: t.TempDir()})

	env := &postTestEnv{db: newTestDB(t)}
	pc := NewPostController(env.db)

	identity := func(ctx *gin.Context) {
		ctx.Set(middleware.ContextUserIDKey, env.caller)
		ctx.Next()
	}

	r := gin.New()
	posts := r.Group("/api/posts")
	posts.GET("/user/:uid", pc.GetUserPosts)
	posts.GET("/:pid", pc.GetPost)
	posts.POST("", identity, pc.CreatePost)
	posts.PATCH("/:pid", identity, pc.UpdatePost)
	posts.DELETE("/:pid", identity, pc.DeletePost)
	posts.PUT("/:pid/reaction", identity, pc.React)
	posts.DELETE("/:pid/reaction", identity, pc.Unreact)

	env.router = r
	return env
}

func (e *postTestEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// multipartForm builds a multipart body with the given fields and, when
// imageType is non-empty, an image part of that MIME type.
func multipartForm(t *testing.T, fields map[string]string, imageType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if imageType != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="image"; filename="pic.img"`)
		h.Set("Content-Type", imageType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create image part: %v", err)
		}
		if _, err := part.Write(payload); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}
