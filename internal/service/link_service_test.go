package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/paylink/internal/models"
	"github.com/SergeiKhy/paylink/internal/repository"
	"github.com/SergeiKhy/paylink/internal/service"
	"github.com/SergeiKhy/paylink/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerID int64 = 42

// setupTestService создаёт тестовое окружение с моковыми репозиториями
func setupTestService() (service.LinkService, *mocks.MockLinkRepository, *mocks.MockCacheRepository) {
	linkRepo := mocks.NewMockLinkRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	clickRepo := mocks.NewMockClickRepository(linkRepo)
	linkService := service.NewLinkService(linkRepo, cacheRepo, clickRepo, zap.NewNop())
	return linkService, linkRepo, cacheRepo
}

func newLinkInput(url string) *models.CreateLinkInput {
	return &models.CreateLinkInput{OwnerID: ownerID, TargetURL: url}
}

// TestLinkService_CreateLink_Success проверяет успешное создание ссылки
func TestLinkService_CreateLink_Success(t *testing.T) {
	linkService, _, _ := setupTestService()

	input := newLinkInput("https://example.com/test")

	link, err := linkService.CreateLink(context.Background(), input)

	require.NoError(t, err)
	assert.Len(t, link.Slug, 8)
	assert.Equal(t, input.TargetURL, link.TargetURL)
	assert.Equal(t, ownerID, link.OwnerID)
	assert.True(t, link.Earnings.IsZero())
	assert.False(t, link.CreatedAt.IsZero())
}

// TestLinkService_CreateLink_WithCustomSlug проверяет создание ссылки с кастомным slug
func TestLinkService_CreateLink_WithCustomSlug(t *testing.T) {
	linkService, _, _ := setupTestService()

	custom := "my-custom"
	input := newLinkInput("https://example.com/test")
	input.CustomSlug = &custom

	link, err := linkService.CreateLink(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, custom, link.Slug)

	// Повторное создание с тем же slug не ретраится
	_, err = linkService.CreateLink(context.Background(), input)
	assert.ErrorIs(t, err, repository.ErrSlugExists)
}

// TestLinkService_CreateLink_WithExpiration проверяет создание ссылки с временем жизни
func TestLinkService_CreateLink_WithExpiration(t *testing.T) {
	linkService, _, _ := setupTestService()

	expiresIn := 60 // 60 минут
	input := newLinkInput("https://example.com/test")
	input.ExpiresIn = &expiresIn

	link, err := linkService.CreateLink(context.Background(), input)

	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, link.ExpiresAt.After(time.Now()))
	assert.True(t, link.Active(time.Now()))
	assert.False(t, link.Active(time.Now().Add(2*time.Hour)))
}

// TestLinkService_CreateLink_InvalidCustomSlug проверяет валидацию кастомного slug
func TestLinkService_CreateLink_InvalidCustomSlug(t *testing.T) {
	linkService, _, _ := setupTestService()

	// Невалидные slug: слишком короткий, слишком длинный, с недопустимыми символами
	for _, slug := range []string{"ab", "toolongcustomslug123", "invalid@slug"} {
		custom := slug
		input := newLinkInput("https://example.com/test")
		input.CustomSlug = &custom

		link, err := linkService.CreateLink(context.Background(), input)

		assert.ErrorIs(t, err, service.ErrInvalidSlug, slug)
		assert.Nil(t, link)
	}
}

// TestLinkService_ValidateURL проверяет валидацию URL
func TestLinkService_ValidateURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://example.com", true},
		{"http://example.com/path", true},
		{"https://sub.example.com/path?query=value", true},
		{"not-a-url", false},
		{"ftp://example.com", false},
		{"", false},
		{"example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			linkService, _, _ := setupTestService()

			link, err := linkService.CreateLink(context.Background(), newLinkInput(tt.url))

			if tt.valid {
				assert.NoError(t, err)
				assert.NotNil(t, link)
				return
			}
			assert.ErrorIs(t, err, service.ErrInvalidURL)
			assert.Nil(t, link)
		})
	}
}

// TestLinkService_CheckSpamDomain проверяет блокировку спам-доменов
func TestLinkService_CheckSpamDomain(t *testing.T) {
	linkService, _, _ := setupTestService()

	for _, url := range []string{"https://malware.com/bad", "https://phishing.com/steal", "https://spam.com/junk"} {
		link, err := linkService.CreateLink(context.Background(), newLinkInput(url))
		assert.ErrorIs(t, err, service.ErrSpamDomain, url)
		assert.Nil(t, link)
	}

	link, err := linkService.CreateLink(context.Background(), newLinkInput("https://github.com/user/repo"))
	assert.NoError(t, err)
	assert.NotNil(t, link)
}

// TestLinkService_GetLink_FromCache проверяет получение ссылки из кэша
func TestLinkService_GetLink_FromCache(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService()
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, newLinkInput("https://example.com/test"))
	require.NoError(t, err)

	cached, err := cacheRepo.Get(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, created.Slug, cached.Slug)

	// Удаляем из БД напрямую: ссылка всё равно отдаётся из кэша
	require.NoError(t, linkRepo.Delete(ctx, created.Slug, ownerID))

	got, err := linkService.GetLink(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, created.TargetURL, got.TargetURL)
}

// TestLinkService_GetLink_CacheFailureIgnored ошибка кэша не ломает создание
func TestLinkService_GetLink_CacheFailureIgnored(t *testing.T) {
	linkService, _, cacheRepo := setupTestService()
	cacheRepo.FailOn("Set", fmt.Errorf("redis down"))

	link, err := linkService.CreateLink(context.Background(), newLinkInput("https://example.com/test"))

	require.NoError(t, err)
	assert.NotNil(t, link)
	assert.Zero(t, cacheRepo.Len())
}

// TestLinkService_GetLink_NotFound проверяет обработку несуществующей ссылки
func TestLinkService_GetLink_NotFound(t *testing.T) {
	linkService, _, _ := setupTestService()

	link, err := linkService.GetLink(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.Nil(t, link)
}

// TestLinkService_DeleteLink_Success проверяет успешное удаление ссылки
func TestLinkService_DeleteLink_Success(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService()
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, newLinkInput("https://example.com/test"))
	require.NoError(t, err)

	require.NoError(t, linkService.DeleteLink(ctx, created.Slug, ownerID))

	_, err = cacheRepo.Get(ctx, created.Slug)
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	stored, err := linkRepo.GetBySlug(ctx, created.Slug)
	require.NoError(t, err)
	assert.True(t, stored.Disabled)
	assert.False(t, stored.Active(time.Now()))

	// Повторное удаление отключённой ссылки
	err = linkService.DeleteLink(ctx, created.Slug, ownerID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

// TestLinkService_DeleteLink_OtherOwner чужую ссылку удалить нельзя
func TestLinkService_DeleteLink_OtherOwner(t *testing.T) {
	linkService, _, _ := setupTestService()
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, newLinkInput("https://example.com/test"))
	require.NoError(t, err)

	err = linkService.DeleteLink(ctx, created.Slug, ownerID+1)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	_, err = linkService.GetLink(ctx, created.Slug)
	assert.NoError(t, err)
}

// TestLinkService_GetStats проверяет статистику и проверку владельца
func TestLinkService_GetStats(t *testing.T) {
	linkRepo := mocks.NewMockLinkRepository()
	clickRepo := mocks.NewMockClickRepository(linkRepo)
	linkService := service.NewLinkService(linkRepo, mocks.NewMockCacheRepository(), clickRepo, zap.NewNop())
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, newLinkInput("https://example.com/test"))
	require.NoError(t, err)

	for _, ip := range []string{"1.1.1.1", "1.1.1.1", "2.2.2.2"} {
		require.NoError(t, clickRepo.RecordClick(ctx, &models.Click{LinkID: created.ID, IPAddress: ip, ClickedAt: time.Now()}))
		require.NoError(t, linkRepo.RecordClick(ctx, created.ID, decimalFromString(t, "0.001"), time.Now()))
	}

	stats, err := linkService.GetStats(ctx, created.Slug, ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Clicks)
	assert.Equal(t, int64(2), stats.UniqueClicks)
	assert.Equal(t, "0.003", stats.Earnings.String())

	daily, err := linkService.GetDailyStats(ctx, created.Slug, ownerID, 0)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(3), daily[0].Clicks)

	_, err = linkService.GetStats(ctx, created.Slug, ownerID+1)
	assert.ErrorIs(t, err, service.ErrNotOwner)
}

// TestLinkService_GenerateSlug проверяет генерацию уникальных slug
func TestLinkService_GenerateSlug(t *testing.T) {
	linkService, _, _ := setupTestService()

	slugs := make(map[string]bool)
	for i := 0; i < 100; i++ {
		link, err := linkService.CreateLink(context.Background(), newLinkInput(fmt.Sprintf("https://example.com/test%d", i)))
		require.NoError(t, err)
		assert.Len(t, link.Slug, 8, "Длина slug должна быть 8 символов")
		assert.NotContains(t, slugs, link.Slug, "slug должны быть уникальными")
		slugs[link.Slug] = true
	}
}

// TestLinkService_ConcurrentAccess проверяет потокобезопасность при одновременном доступе
func TestLinkService_ConcurrentAccess(t *testing.T) {
	linkService, _, _ := setupTestService()

	ctx := context.Background()
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func(id int) {
			link, err := linkService.CreateLink(ctx, newLinkInput(fmt.Sprintf("https://example.com/test%d", id)))
			assert.NoError(t, err)
			assert.NotNil(t, link)
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
