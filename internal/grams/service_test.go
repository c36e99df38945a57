package grams

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/anoixa/grammable/cache"
	"github.com/anoixa/grammable/cache/memory"
	"github.com/anoixa/grammable/database/models"
	gramsrepo "github.com/anoixa/grammable/database/repo/grams"
	"github.com/anoixa/grammable/internal/events"
	"github.com/anoixa/grammable/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.GramEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.GramEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *Service
	db        *gorm.DB
	store     *storage.LocalStorage
	publisher *recordingPublisher
	owner     *models.User
	other     *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Gram{}, &models.Comment{}))

	owner := &models.User{Username: "owner", Password: "x", Role: models.RoleUser}
	other := &models.User{Username: "other", Password: "x", Role: models.RoleUser}
	require.NoError(t, db.Create(owner).Error)
	require.NoError(t, db.Create(other).Error)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	mem, err := memory.NewMemory(memory.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	publisher := &recordingPublisher{}
	svc := NewService(gramsrepo.NewRepository(db), store, cache.NewHelper(mem), publisher, Options{
		MaxUploadBytes: 1 << 20,
		TempDir:        t.TempDir(),
	})

	return &fixture{svc: svc, db: db, store: store, publisher: publisher, owner: owner, other: other}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fileHeader 构造 multipart 上传文件
func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(10 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["image"][0]
}

func (f *fixture) createGram(t *testing.T, userID uint, message string) *models.Gram {
	t.Helper()
	gram, err := f.svc.Create(context.Background(), userID, message, fileHeader(t, "a.png", pngBytes(t, 4, 3)))
	require.NoError(t, err)
	return gram
}

func (f *fixture) gramCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&models.Gram{}).Count(&n).Error)
	return n
}

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, raw := range []string{"", "abc", "0", "-1", "1.5"} {
		_, err := ParseID(raw)
		assert.ErrorIs(t, err, ErrNotFound, raw)
	}
}

func TestCanModify(t *testing.T) {
	gram := &models.Gram{UserID: 3}
	assert.True(t, CanModify(3, gram))
	assert.False(t, CanModify(4, gram))
	assert.False(t, CanModify(0, gram))
	assert.False(t, CanModify(3, nil))
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	gram := f.createGram(t, f.owner.ID, "hello world")
	assert.NotZero(t, gram.ID)
	assert.Equal(t, f.owner.ID, gram.UserID)
	assert.Equal(t, "image/png", gram.ImageMimeType)
	assert.Equal(t, 4, gram.ImageWidth)
	assert.Equal(t, 3, gram.ImageHeight)
	assert.Regexp(t, `^original/\d{4}/\d{2}/\d{2}/[0-9a-f]{12}-[0-9a-f]{12}\.png$`, gram.Image)

	exists, err := f.store.Exists(ctx, gram.Image)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := f.svc.Get(ctx, fmt.Sprint(gram.ID))
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Message)
	assert.Equal(t, "owner", got.User.Username)

	assert.Equal(t, []string{events.GramCreated}, f.publisher.types())
}

func TestService_CreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.owner.ID, "   ", nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)

	_, err = f.svc.Create(ctx, f.owner.ID, "", fileHeader(t, "a.png", pngBytes(t, 2, 2)))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "message", ve.Errors[0].Field)

	_, err = f.svc.Create(ctx, f.owner.ID, "caption", fileHeader(t, "notes.txt", []byte("just some text")))
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "image", ve.Errors[0].Field)

	_, err = f.svc.Create(ctx, f.owner.ID, "caption", fileHeader(t, "empty.png", nil))
	_, invalid := AsValidationError(err)
	assert.True(t, invalid)

	assert.Zero(t, f.gramCount(t))
	entries, err := os.ReadDir(f.store.BasePath())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.publisher.types())
}

func TestService_CreateTooLarge(t *testing.T) {
	f := setup(t)
	f.svc.opts.MaxUploadBytes = 10

	_, err := f.svc.Create(context.Background(), f.owner.ID, "big", fileHeader(t, "a.png", pngBytes(t, 8, 8)))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "is too large (maximum is 10 B)", ve.Errors[0].Message)
}

func TestService_GetNotFound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Get(ctx, "999")
	assert.ErrorIs(t, err, ErrNotFound)

	// 第二次命中空值标记
	_, err = f.svc.Get(ctx, "999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_List(t *testing.T) {
	f := setup(t)
	first := f.createGram(t, f.owner.ID, "first")
	second := f.createGram(t, f.other.ID, "second")

	grams, total, err := f.svc.List(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, grams, 2)
	assert.Equal(t, second.ID, grams[0].ID)
	assert.Equal(t, first.ID, grams[1].ID)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	gram := f.createGram(t, f.owner.ID, "before")
	rawID := fmt.Sprint(gram.ID)

	// 先缓存，确认修改后缓存失效
	_, err := f.svc.Get(ctx, rawID)
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.owner.ID, "nope", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Update(ctx, f.owner.ID, "999", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	// 非作者且内容为空时，权限检查优先
	_, err = f.svc.Update(ctx, f.other.ID, rawID, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Update(ctx, f.owner.ID, rawID, "  ")
	ve, invalid := AsValidationError(err)
	require.True(t, invalid)
	assert.Equal(t, "message", ve.Errors[0].Field)

	updated, err := f.svc.Update(ctx, f.owner.ID, rawID, "after")
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Message)
	assert.Equal(t, gram.Image, updated.Image)
	assert.Equal(t, f.owner.ID, updated.UserID)

	got, err := f.svc.Get(ctx, rawID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Message)

	assert.Equal(t, []string{events.GramCreated, events.GramUpdated}, f.publisher.types())
}

func TestService_Destroy(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	gram := f.createGram(t, f.owner.ID, "bye")
	rawID := fmt.Sprint(gram.ID)
	require.NoError(t, f.db.Create(&models.Comment{GramID: gram.ID, UserID: f.other.ID, Message: "nice"}).Error)

	_, err := f.svc.Get(ctx, rawID)
	require.NoError(t, err)

	_, err = f.svc.Destroy(ctx, f.other.ID, rawID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int64(1), f.gramCount(t))

	_, err = f.svc.Destroy(ctx, f.owner.ID, rawID)
	require.NoError(t, err)
	assert.Zero(t, f.gramCount(t))

	var comments int64
	require.NoError(t, f.db.Unscoped().Model(&models.Comment{}).Count(&comments).Error)
	assert.Zero(t, comments)

	_, err = f.svc.Get(ctx, rawID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Destroy(ctx, f.owner.ID, rawID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Eventually(t, func() bool {
		_, statErr := os.Stat(filepath.Join(f.store.BasePath(), gram.Image))
		return os.IsNotExist(statErr)
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{events.GramCreated, events.GramDestroyed}, f.publisher.types())
}

func TestService_SameContentGetsOwnAsset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	first := f.createGram(t, f.owner.ID, "one")
	second := f.createGram(t, f.owner.ID, "two")
	require.NotEqual(t, first.Image, second.Image)

	_, err := f.svc.Destroy(ctx, f.owner.ID, fmt.Sprint(first.ID))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		exists, err := f.store.Exists(ctx, first.Image)
		return err == nil && !exists
	}, 2*time.Second, 20*time.Millisecond)

	reader, _, err := f.svc.OpenImage(ctx, fmt.Sprint(second.ID))
	require.NoError(t, err)
	if c, ok := reader.(io.Closer); ok {
		c.Close()
	}
}

// uploadDuringDelete 在删除图片之前插入一次相同内容的上传
type uploadDuringDelete struct {
	storage.Provider
	once   sync.Once
	upload func()
	done   chan struct{}
}

func (s *uploadDuringDelete) DeleteWithContext(ctx context.Context, path string) error {
	s.once.Do(func() {
		s.upload()
		close(s.done)
	})
	return s.Provider.DeleteWithContext(ctx, path)
}

func TestService_DestroyDuringSameContentUpload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	content := pngBytes(t, 6, 6)

	first, err := f.svc.Create(ctx, f.owner.ID, "first", fileHeader(t, "a.png", content))
	require.NoError(t, err)

	var second *models.Gram
	wrapped := &uploadDuringDelete{Provider: f.store, done: make(chan struct{})}
	wrapped.upload = func() {
		var err error
		second, err = f.svc.Create(ctx, f.other.ID, "second", fileHeader(t, "b.png", content))
		assert.NoError(t, err)
	}
	f.svc.storage = wrapped

	_, err = f.svc.Destroy(ctx, f.owner.ID, fmt.Sprint(first.ID))
	require.NoError(t, err)

	select {
	case <-wrapped.done:
	case <-time.After(2 * time.Second):
		t.Fatal("asset removal did not run")
	}
	require.NotNil(t, second)

	assert.Eventually(t, func() bool {
		exists, err := f.store.Exists(ctx, first.Image)
		return err == nil && !exists
	}, 2*time.Second, 20*time.Millisecond)

	reader, got, err := f.svc.OpenImage(ctx, fmt.Sprint(second.ID))
	require.NoError(t, err)
	if c, ok := reader.(io.Closer); ok {
		c.Close()
	}
	assert.Equal(t, f.other.ID, got.UserID)
}

// destroyBeforeSet 在回填缓存前先执行一次写操作
type destroyBeforeSet struct {
	cache.Provider
	mu     sync.Mutex
	before func()
}

func (p *destroyBeforeSet) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	p.mu.Lock()
	before := p.before
	p.before = nil
	p.mu.Unlock()
	if before != nil {
		before()
	}
	return p.Provider.Set(ctx, key, value, expiration)
}

func TestService_GetDoesNotRefillAfterDestroy(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	gram := f.createGram(t, f.owner.ID, "short lived")
	rawID := fmt.Sprint(gram.ID)

	mem, err := memory.NewMemory(memory.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	hooked := &destroyBeforeSet{Provider: mem}
	hooked.before = func() {
		_, err := f.svc.Destroy(ctx, f.owner.ID, rawID)
		assert.NoError(t, err)
	}
	f.svc.cache = cache.NewHelper(hooked)

	// 读到的是删除前的数据，但不能留在缓存里
	_, err = f.svc.Get(ctx, rawID)
	require.NoError(t, err)
	assert.Zero(t, f.gramCount(t))

	_, err = f.svc.Get(ctx, rawID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_GetDoesNotRefillAfterUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	gram := f.createGram(t, f.owner.ID, "old")
	rawID := fmt.Sprint(gram.ID)

	mem, err := memory.NewMemory(memory.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	hooked := &destroyBeforeSet{Provider: mem}
	hooked.before = func() {
		_, err := f.svc.Update(ctx, f.owner.ID, rawID, "new")
		assert.NoError(t, err)
	}
	f.svc.cache = cache.NewHelper(hooked)

	_, err = f.svc.Get(ctx, rawID)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, rawID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Message)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{1, 10, 1, 10},
		{0, 0, 1, 20},
		{-3, 500, 1, 20},
		{4, 100, 4, 100},
		{2, 101, 2, 20},
	}
	for _, tt := range tests {
		page, limit := NormalizePage(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantLimit, limit)
	}
}

func TestService_TooLargeError(t *testing.T) {
	f := setup(t)
	ve, ok := AsValidationError(f.svc.TooLargeError())
	require.True(t, ok)
	assert.Equal(t, "image", ve.Errors[0].Field)
	assert.Equal(t, "is too large (maximum is 1.00 MB)", ve.Errors[0].Message)
}

func TestService_OpenImage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	content := pngBytes(t, 5, 5)
	gram, err := f.svc.Create(ctx, f.owner.ID, "pic", fileHeader(t, "p.png", content))
	require.NoError(t, err)

	reader, got, err := f.svc.OpenImage(ctx, fmt.Sprint(gram.ID))
	require.NoError(t, err)
	if c, ok := reader.(io.Closer); ok {
		defer c.Close()
	}
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, "image/png", got.ImageMimeType)

	_, _, err = f.svc.OpenImage(ctx, "404")
	assert.ErrorIs(t, err, ErrNotFound)
}
