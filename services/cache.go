package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"backend_crm/database"

	"github.com/go-redis/redis/v8"
)

// CacheService предоставляет методы для кэширования
type CacheService struct {
	redis  *redis.Client
	logger *log.Logger
}

// NewCacheService создает новый экземпляр CacheService
func NewCacheService(redisClient *redis.Client, logger *log.Logger) *CacheService {
	return &CacheService{
		redis:  redisClient,
		logger: logger,
	}
}

// Get получает значение из кэша
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	if cs.redis == nil {
		return "", fmt.Errorf("Redis не подключен")
	}

	val, err := cs.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("ключ не найден")
	}
	return val, err
}

// Set сохраняет значение в кэш
func (cs *CacheService) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if cs.redis == nil {
		if cs.logger != nil {
			cs.logger.Printf("Redis не подключен, пропускаем кэширование для ключа: %s", key)
		}
		return nil // Не возвращаем ошибку, просто пропускаем кэширование
	}

	return cs.redis.Set(ctx, key, value, ttl).Err()
}

// Del удаляет значение из кэша
func (cs *CacheService) Del(ctx context.Context, key string) error {
	if cs.redis == nil {
		return nil
	}

	return cs.redis.Del(ctx, key).Err()
}

// Константы для TTL кэша
const (
	CacheTTLShort  = 5 * time.Minute  // Для часто изменяемых данных
	CacheTTLMedium = 15 * time.Minute // Для умеренно изменяемых данных
	CacheTTLLong   = 1 * time.Hour    // Для редко изменяемых данных
)

// CacheDashboardStats кэширует статистику дашборда пользователя
func (cs *CacheService) CacheDashboardStats(userID uint, stats interface{}) error {
	key := database.GenerateUserCacheKey(userID, "dashboard")
	return database.CacheSetJSON(key, stats, CacheTTLShort)
}

// GetCachedDashboardStats получает статистику дашборда из кэша
func (cs *CacheService) GetCachedDashboardStats(userID uint, dest interface{}) error {
	key := database.GenerateUserCacheKey(userID, "dashboard")
	return database.CacheGetJSON(key, dest)
}

// InvalidateDashboardStats инвалидирует кэш дашборда пользователя
func (cs *CacheService) InvalidateDashboardStats(userID uint) error {
	key := database.GenerateUserCacheKey(userID, "dashboard")
	return database.CacheDel(key)
}

// CacheExport кэширует готовый экспорт пользователя
func (cs *CacheService) CacheExport(userID uint, kind string, data []byte) error {
	key := database.GenerateUserCacheKey(userID, "export:"+kind)
	return database.CacheSet(key, string(data), CacheTTLMedium)
}

// GetCachedExport получает экспорт из кэша
func (cs *CacheService) GetCachedExport(userID uint, kind string) ([]byte, error) {
	key := database.GenerateUserCacheKey(userID, "export:"+kind)
	val, err := database.CacheGet(key)
	if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

// InvalidateExportCache инвалидирует кэш экспортов пользователя
func (cs *CacheService) InvalidateExportCache(userID uint, kind string) error {
	key := database.GenerateUserCacheKey(userID, "export:"+kind)
	return database.CacheDel(key)
}

// InvalidateAllUserCache инвалидирует весь кэш пользователя
func (cs *CacheService) InvalidateAllUserCache(userID uint) error {
	pattern := fmt.Sprintf("user:%d:*", userID)
	return cs.invalidateByPattern(pattern)
}

// invalidateByPattern инвалидирует кэш по паттерну
func (cs *CacheService) invalidateByPattern(pattern string) error {
	redisClient := database.GetRedis()
	if redisClient == nil {
		return nil // Redis не подключен
	}

	keys, err := redisClient.Keys(database.Ctx, pattern).Result()
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		return redisClient.Del(database.Ctx, keys...).Err()
	}

	return nil
}

// GetCacheStats возвращает статистику использования кэша
func (cs *CacheService) GetCacheStats() (map[string]interface{}, error) {
	redisClient := database.GetRedis()
	if redisClient == nil {
		return map[string]interface{}{
			"status": "disabled",
		}, nil
	}

	keyCount, err := redisClient.DBSize(database.Ctx).Result()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":    "enabled",
		"key_count": keyCount,
	}, nil
}
