package grams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/anoixa/grammable/api/common"
	"github.com/anoixa/grammable/api/middleware"
	"github.com/anoixa/grammable/database/models"
	gramsrepo "github.com/anoixa/grammable/database/repo/grams"
	"github.com/anoixa/grammable/internal/auth"
	svcGrams "github.com/anoixa/grammable/internal/grams"
	"github.com/anoixa/grammable/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const loginPath = "/users/sign_in"

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	svc    *svcGrams.Service
	jwt    *auth.JWTService
	alice  *models.User
	bob    *models.User
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Gram{}, &models.Comment{}))

	alice := &models.User{Username: "alice", Password: "x", Role: models.RoleUser}
	bob := &models.User{Username: "bob", Password: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(alice).Error)
	require.NoError(t, db.Create(bob).Error)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	jwtService, err := auth.NewJWTService(auth.TokenConfig{
		Secret:           []byte("0123456789abcdef0123456789abcdef"),
		ExpiresIn:        time.Hour,
		RefreshExpiresIn: 24 * time.Hour,
	})
	require.NoError(t, err)

	svc := svcGrams.NewService(gramsrepo.NewRepository(db), store, nil, nil, svcGrams.Options{TempDir: t.TempDir()})

	router := gin.New()
	router.Use(middleware.LoadUser(jwtService))
	pass := func(c *gin.Context) { c.Next() }
	NewHandler(svc, "http://example.test").RegisterRoutes(router, middleware.RequireLogin(loginPath), pass, pass)

	return &testEnv{router: router, db: db, svc: svc, jwt: jwtService, alice: alice, bob: bob}
}

func (e *testEnv) token(t *testing.T, user *models.User) string {
	token, _, err := e.jwt.GenerateAccessToken(user.Username, user.ID, user.Role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(req *http.Request, user string) *httptest.ResponseRecorder {
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) gramCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, e.db.Model(&models.Gram{}).Count(&n).Error)
	return n
}

func pngData(t *testing.T) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 6, 4))))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, message *string, filename string, content []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if message != nil {
		require.NoError(t, mw.WriteField("message", *message))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/grams", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func strPtr(s string) *string { return &s }

func (e *testEnv) seed(t *testing.T, owner *models.User, message string) *models.Gram {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "seed.png")
	require.NoError(t, err)
	_, err = part.Write(pngData(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)

	gram, err := e.svc.Create(context.Background(), owner.ID, message, form.File["image"][0])
	require.NoError(t, err)
	return gram
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) common.Response {
	resp := common.Response{Data: data}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestIndex(t *testing.T) {
	env := setupTestEnv(t)
	env.seed(t, env.alice, "first")
	env.seed(t, env.bob, "second")

	for _, path := range []string{"/", "/grams"} {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil), "")
		require.Equal(t, http.StatusOK, w.Code)

		var list ListResponse
		decode(t, w, &list)
		assert.Equal(t, int64(2), list.Total)
		require.Len(t, list.Grams, 2)
		assert.Equal(t, "second", list.Grams[0].Message)
		assert.Equal(t, "bob", list.Grams[0].Author.Username)
	}
}

func TestIndex_LimitEchoesValueUsed(t *testing.T) {
	env := setupTestEnv(t)
	env.seed(t, env.alice, "only")

	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"?limit=500", 1, 20},
		{"?limit=0&page=0", 1, 20},
		{"?limit=abc", 1, 20},
		{"?limit=5&page=2", 2, 5},
	}
	for _, tt := range tests {
		w := env.do(httptest.NewRequest(http.MethodGet, "/grams"+tt.query, nil), "")
		require.Equal(t, http.StatusOK, w.Code, tt.query)

		var list ListResponse
		decode(t, w, &list)
		assert.Equal(t, tt.wantPage, list.Page, tt.query)
		assert.Equal(t, tt.wantLimit, list.Limit, tt.query)
	}
}

func TestNew(t *testing.T) {
	env := setupTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/grams/new", nil), "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, loginPath, w.Header().Get("Location"))

	w = env.do(httptest.NewRequest(http.MethodGet, "/grams/new", nil), env.token(t, env.alice))
	require.Equal(t, http.StatusOK, w.Code)
	var form common.Form
	decode(t, w, &form)
	assert.Equal(t, "/grams", form.Action)
	assert.Len(t, form.Fields, 2)
}

func TestCreate(t *testing.T) {
	env := setupTestEnv(t)
	aliceToken := env.token(t, env.alice)

	t.Run("requires login", func(t *testing.T) {
		w := env.do(multipartRequest(t, strPtr("hi"), "a.png", pngData(t)), "")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, loginPath, w.Header().Get("Location"))
		assert.Zero(t, env.gramCount(t))
	})

	t.Run("missing message", func(t *testing.T) {
		w := env.do(multipartRequest(t, nil, "a.png", pngData(t)), aliceToken)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Zero(t, env.gramCount(t))
	})

	t.Run("missing image", func(t *testing.T) {
		w := env.do(multipartRequest(t, strPtr("hi"), "", nil), aliceToken)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"image"`)
		assert.Zero(t, env.gramCount(t))
	})

	t.Run("not an image", func(t *testing.T) {
		w := env.do(multipartRequest(t, strPtr("hi"), "a.txt", []byte("plain text")), aliceToken)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Zero(t, env.gramCount(t))
	})

	t.Run("success", func(t *testing.T) {
		w := env.do(multipartRequest(t, strPtr("hello"), "a.png", pngData(t)), aliceToken)
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))

		var gram models.Gram
		require.NoError(t, env.db.Last(&gram).Error)
		assert.Equal(t, "hello", gram.Message)
		assert.Equal(t, env.alice.ID, gram.UserID)
	})
}

func TestCreate_BodyOverLimit(t *testing.T) {
	env := setupTestEnv(t)

	router := gin.New()
	router.Use(middleware.MaxBytesReader(1024))
	router.Use(middleware.LoadUser(env.jwt))
	pass := func(c *gin.Context) { c.Next() }
	NewHandler(env.svc, "http://example.test").RegisterRoutes(router, middleware.RequireLogin(loginPath), pass, pass)

	oversized := append(pngData(t), bytes.Repeat([]byte{0}, 4096)...)
	req := multipartRequest(t, strPtr("too big"), "big.png", oversized)
	req.Header.Set("Authorization", "Bearer "+env.token(t, env.alice))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"image"`)
	assert.Contains(t, w.Body.String(), "is too large")
	assert.NotContains(t, w.Body.String(), "can't be blank")
	assert.Zero(t, env.gramCount(t))
}

func TestShow(t *testing.T) {
	env := setupTestEnv(t)
	gram := env.seed(t, env.alice, "look")

	w := env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/grams/%d", gram.ID), nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var dto GramDTO
	decode(t, w, &dto)
	assert.Equal(t, "look", dto.Message)
	assert.Equal(t, fmt.Sprintf("http://example.test/grams/%d/image", gram.ID), dto.ImageURL)
	assert.Equal(t, 6, dto.Width)

	for _, path := range []string{"/grams/9999", "/grams/TACOCAT"} {
		w = env.do(httptest.NewRequest(http.MethodGet, path, nil), "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestEdit(t *testing.T) {
	env := setupTestEnv(t)
	gram := env.seed(t, env.alice, "draft")

	// 编辑表单不要求登录
	w := env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/grams/%d/edit", gram.ID), nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var form common.Form
	decode(t, w, &form)
	assert.Equal(t, http.MethodPatch, form.Method)
	assert.Equal(t, "draft", form.Fields[0].Value)

	w = env.do(httptest.NewRequest(http.MethodGet, "/grams/TACOCAT/edit", nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func formRequest(method, path, message string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(url.Values{"message": {message}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestUpdate(t *testing.T) {
	env := setupTestEnv(t)
	gram := env.seed(t, env.alice, "Initial Value")
	path := fmt.Sprintf("/grams/%d", gram.ID)

	tests := []struct {
		name     string
		req      *http.Request
		user     *models.User
		wantCode int
		wantMsg  string
	}{
		{"requires login", formRequest(http.MethodPatch, path, "Changed"), nil, http.StatusFound, "Initial Value"},
		{"missing gram", formRequest(http.MethodPatch, "/grams/TACOCAT", "Changed"), env.alice, http.StatusNotFound, "Initial Value"},
		{"not owner", formRequest(http.MethodPatch, path, "wahhh"), env.bob, http.StatusUnauthorized, "Initial Value"},
		{"not owner with blank message", formRequest(http.MethodPatch, path, ""), env.bob, http.StatusUnauthorized, "Initial Value"},
		{"blank message", formRequest(http.MethodPatch, path, ""), env.alice, http.StatusUnprocessableEntity, "Initial Value"},
		{"success", formRequest(http.MethodPatch, path, "Changed"), env.alice, http.StatusFound, "Changed"},
		{"put alias", formRequest(http.MethodPut, path, "Changed again"), env.alice, http.StatusFound, "Changed again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := ""
			if tt.user != nil {
				token = env.token(t, tt.user)
			}
			w := env.do(tt.req, token)
			assert.Equal(t, tt.wantCode, w.Code)

			var stored models.Gram
			require.NoError(t, env.db.First(&stored, gram.ID).Error)
			assert.Equal(t, tt.wantMsg, stored.Message)
			assert.Equal(t, env.alice.ID, stored.UserID)
		})
	}
}

func TestUpdate_JSONBody(t *testing.T) {
	env := setupTestEnv(t)
	gram := env.seed(t, env.alice, "before")

	req := httptest.NewRequest(http.MethodPatch, fmt.Sprintf("/grams/%d", gram.ID), strings.NewReader(`{"message":"after"}`))
	req.Header.Set("Content-Type", "application/json")
	w := env.do(req, env.token(t, env.alice))
	assert.Equal(t, http.StatusFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/grams/%d", gram.ID), nil), "")
	assert.Contains(t, w.Body.String(), `"message":"after"`)
}

func TestDestroy(t *testing.T) {
	env := setupTestEnv(t)
	gram := env.seed(t, env.alice, "temporary")
	path := fmt.Sprintf("/grams/%d", gram.ID)

	w := env.do(httptest.NewRequest(http.MethodDelete, path, nil), "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, loginPath, w.Header().Get("Location"))

	w = env.do(httptest.NewRequest(http.MethodDelete, path, nil), env.token(t, env.bob))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int64(1), env.gramCount(t))

	w = env.do(httptest.NewRequest(http.MethodDelete, "/grams/TACOCAT", nil), env.token(t, env.alice))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(httptest.NewRequest(http.MethodDelete, path, nil), env.token(t, env.alice))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Zero(t, env.gramCount(t))

	w = env.do(httptest.NewRequest(http.MethodDelete, path, nil), env.token(t, env.alice))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestImage(t *testing.T) {
	env := setupTestEnv(t)
	gram := env.seed(t, env.alice, "pic")

	w := env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/grams/%d/image", gram.ID), nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngData(t), w.Body.Bytes())

	w = env.do(httptest.NewRequest(http.MethodGet, "/grams/77/image", nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
