// Package grams 实现 gram 的查询、创建、修改与删除
package grams

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anoixa/grammable/cache"
	"github.com/anoixa/grammable/database/models"
	gramsrepo "github.com/anoixa/grammable/database/repo/grams"
	"github.com/anoixa/grammable/internal/events"
	"github.com/anoixa/grammable/storage"
	"github.com/anoixa/grammable/utils"
	"github.com/anoixa/grammable/utils/format"
	"github.com/anoixa/grammable/utils/generator"
	"github.com/anoixa/grammable/utils/imageinfo"
	"github.com/anoixa/grammable/utils/validator"
	"github.com/google/uuid"
)

const (
	msgBlank       = "can't be blank"
	msgNotImage    = "must be a jpeg, png, gif, webp or bmp image"
	msgTooLarge    = "is too large"
	assetDeleteTTL = 30 * time.Second

	defaultPageSize = 20
	maxPageSize     = 100
)

// Options 服务选项
type Options struct {
	// MaxUploadBytes 单张图片大小上限，<=0 表示不限制
	MaxUploadBytes int64
	// TempDir 上传临时文件目录，为空时使用系统临时目录
	TempDir string
}

// Service gram 服务
type Service struct {
	repo      *gramsrepo.Repository
	storage   storage.Provider
	cache     *cache.Helper
	publisher events.Publisher
	paths     *generator.PathGenerator
	opts      Options

	// invalidations 每次写库后的缓存失效都会加一
	invalidations atomic.Uint64
}

// NewService 创建 gram 服务，cacheHelper 和 publisher 可为 nil
func NewService(
	repo *gramsrepo.Repository,
	storageProvider storage.Provider,
	cacheHelper *cache.Helper,
	publisher events.Publisher,
	opts Options,
) *Service {
	if cacheHelper == nil {
		cacheHelper = cache.NewHelper(nil)
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		repo:      repo,
		storage:   storageProvider,
		cache:     cacheHelper,
		publisher: publisher,
		paths:     generator.NewPathGenerator(),
		opts:      opts,
	}
}

// ParseID 解析路径中的 id，非正整数视为不存在
func ParseID(rawID string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrNotFound
	}
	return uint(id), nil
}

// Get 获取 gram 详情，优先读缓存
func (s *Service) Get(ctx context.Context, rawID string) (*models.Gram, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}

	if s.cache.IsMissingGram(ctx, id) {
		return nil, ErrNotFound
	}

	var cached models.Gram
	if err := s.cache.GetCachedGram(ctx, id, &cached); err == nil {
		return &cached, nil
	} else if !cache.IsCacheMiss(err) {
		log.Printf("[Grams] cache read failed for gram %d: %v", id, err)
	}

	// 读库前记下失效计数
	gen := s.invalidations.Load()

	gram, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.fillCache(ctx, id, gen, func() error { return s.cache.CacheMissingGram(ctx, id) })
		}
		return nil, err
	}

	s.fillCache(ctx, id, gen, func() error { return s.cache.CacheGram(ctx, gram) })
	return gram, nil
}

// fillCache 回填缓存，期间若有写操作失效过缓存则撤销本次回填
func (s *Service) fillCache(ctx context.Context, id uint, gen uint64, fill func() error) {
	if err := fill(); err != nil {
		log.Printf("[Grams] failed to fill cache for gram %d: %v", id, err)
		return
	}
	if s.invalidations.Load() != gen {
		if err := s.cache.DeleteCachedGram(ctx, id); err != nil {
			log.Printf("[Grams] failed to drop stale cache for gram %d: %v", id, err)
		}
	}
}

// invalidate 写库提交后调用，先加计数再删缓存
func (s *Service) invalidate(ctx context.Context, id uint) {
	s.invalidations.Add(1)
	if err := s.cache.DeleteCachedGram(ctx, id); err != nil {
		log.Printf("[Grams] failed to invalidate cache for gram %d: %v", id, err)
	}
}

// load 直接从数据库读取
func (s *Service) load(ctx context.Context, id uint) (*models.Gram, error) {
	gram, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gramsrepo.ErrGramNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get gram %d: %w", id, err)
	}
	return gram, nil
}

// NormalizePage 修正分页参数，超出范围的 limit 回落到默认值
func NormalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return page, limit
}

// List 分页列出 gram，最新的在前
func (s *Service) List(ctx context.Context, page, limit int) ([]*models.Gram, int64, error) {
	page, limit = NormalizePage(page, limit)
	grams, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list grams: %w", err)
	}
	return grams, total, nil
}

// Create 校验上传内容并保存，作者为当前用户
// 校验失败时不写存储也不写数据库
func (s *Service) Create(ctx context.Context, userID uint, message string, upload *multipart.FileHeader) (*models.Gram, error) {
	var fieldErrs []models.FieldError
	if strings.TrimSpace(message) == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "message", Message: msgBlank})
	}
	if upload == nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "image", Message: msgBlank})
	} else if s.opts.MaxUploadBytes > 0 && upload.Size > s.opts.MaxUploadBytes {
		fieldErrs = append(fieldErrs, s.tooLargeField())
	}
	if len(fieldErrs) > 0 {
		return nil, newValidationError(fieldErrs...)
	}

	file, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	tempFile, err := os.CreateTemp(s.opts.TempDir, "gram-upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tempFile.Close()
		os.Remove(tempFile.Name())
	}()

	// 流式计算哈希
	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tempFile, hasher), file)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}
	if size == 0 {
		return nil, newValidationError(models.FieldError{Field: "image", Message: msgBlank})
	}
	if _, err := tempFile.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek temp file: %w", err)
	}

	ok, mimeType, err := validator.IsImage(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to sniff upload: %w", err)
	}
	if !ok {
		return nil, newValidationError(models.FieldError{Field: "image", Message: msgNotImage})
	}

	info, err := imageinfo.Probe(tempFile)
	if err != nil {
		return nil, newValidationError(models.FieldError{Field: "image", Message: msgNotImage})
	}

	ids := s.paths.GenerateOriginalIdentifiers(
		hex.EncodeToString(hasher.Sum(nil)),
		uuid.NewString(),
		utils.GetSafeExtension(mimeType),
		time.Now(),
	)

	gram := &models.Gram{
		Message:       message,
		Image:         ids.StoragePath,
		ImageMimeType: mimeType,
		ImageSize:     size,
		ImageWidth:    info.Width,
		ImageHeight:   info.Height,
		UserID:        userID,
	}
	if errs := gram.Validate(); len(errs) > 0 {
		return nil, newValidationError(errs...)
	}

	if err := s.storage.SaveWithContext(ctx, ids.StoragePath, tempFile); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	if err := s.repo.Create(ctx, gram); err != nil {
		s.removeAsset(ids.StoragePath)
		return nil, err
	}

	// 清掉可能存在的空值标记
	s.invalidate(ctx, gram.ID)

	log.Printf("[Grams] user %d created gram %d (%s, %dx%d)", userID, gram.ID, mimeType, info.Width, info.Height)
	s.publish(ctx, events.GramCreated, gram)
	return gram, nil
}

// Update 修改消息：先查存在，再查权限，最后校验
func (s *Service) Update(ctx context.Context, userID uint, rawID string, message string) (*models.Gram, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}

	gram, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanModify(userID, gram) {
		return nil, ErrUnauthorized
	}

	gram.Message = message
	if errs := gram.Validate(); len(errs) > 0 {
		return nil, newValidationError(errs...)
	}

	if err := s.repo.UpdateMessage(ctx, id, message); err != nil {
		if errors.Is(err, gramsrepo.ErrGramNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.invalidate(ctx, id)
	s.publish(ctx, events.GramUpdated, gram)
	return gram, nil
}

// Destroy 物理删除 gram，存储中的图片在后台清理
func (s *Service) Destroy(ctx context.Context, userID uint, rawID string) (*models.Gram, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}

	gram, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanModify(userID, gram) {
		return nil, ErrUnauthorized
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gramsrepo.ErrGramNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.invalidate(ctx, id)
	s.removeAsset(gram.Image)
	s.publish(ctx, events.GramDestroyed, gram)
	return gram, nil
}

// OpenImage 打开 gram 对应的图片
func (s *Service) OpenImage(ctx context.Context, rawID string) (io.ReadSeeker, *models.Gram, error) {
	gram, err := s.Get(ctx, rawID)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.storage.GetWithContext(ctx, gram.Image)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open image of gram %d: %w", gram.ID, err)
	}
	return reader, gram, nil
}

// TooLargeError 上传超过大小上限时的校验错误
func (s *Service) TooLargeError() error {
	return newValidationError(s.tooLargeField())
}

func (s *Service) tooLargeField() models.FieldError {
	msg := msgTooLarge
	if s.opts.MaxUploadBytes > 0 {
		msg = fmt.Sprintf("%s (maximum is %s)", msgTooLarge, format.HumanReadableSize(s.opts.MaxUploadBytes))
	}
	return models.FieldError{Field: "image", Message: msg}
}

// removeAsset 后台删除图片，每次上传的存储路径都是独占的
func (s *Service) removeAsset(storagePath string) {
	utils.SafeGo("remove asset "+storagePath, func() {
		ctx, cancel := context.WithTimeout(context.Background(), assetDeleteTTL)
		defer cancel()

		if err := s.storage.DeleteWithContext(ctx, storagePath); err != nil {
			log.Printf("[Grams] failed to delete asset %s: %v", storagePath, err)
		}
	})
}

func (s *Service) publish(ctx context.Context, eventType string, gram *models.Gram) {
	event := events.GramEvent{
		Type:       eventType,
		GramID:     gram.ID,
		UserID:     gram.UserID,
		Message:    gram.Message,
		Image:      gram.Image,
		OccurredAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("[Grams] failed to publish %s for gram %d: %v", eventType, gram.ID, err)
	}
}
