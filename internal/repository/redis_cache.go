package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Префиксы ключей для различных типов данных
	accountKeyPrefix         = "account:"
	subscriptionRefKeyPrefix = "account_by_sub:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository реализует кеширование аккаунтов с использованием Redis.
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория.
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis.
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheAccount кеширует аккаунт под обоими ключами поиска.
func (r *RedisCacheRepository) CacheAccount(ctx context.Context, acc *domain.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, accountKeyPrefix+acc.ID.String(), data, defaultCacheTTL)
	if acc.StripeSubscriptionID != "" {
		pipe.Set(ctx, subscriptionRefKeyPrefix+acc.StripeSubscriptionID, data, defaultCacheTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Errorw("Failed to cache account in Redis", "error", err, "accountID", acc.ID)
		return fmt.Errorf("failed to cache account: %w", err)
	}

	return nil
}

// GetCachedAccountByID получает аккаунт из кеша по внутреннему ID.
// Возвращает nil без ошибки при промахе кеша.
func (r *RedisCacheRepository) GetCachedAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.getCached(ctx, accountKeyPrefix+id.String())
}

// GetCachedAccountBySubscriptionID получает аккаунт из кеша по ссылке подписки.
func (r *RedisCacheRepository) GetCachedAccountBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Account, error) {
	return r.getCached(ctx, subscriptionRefKeyPrefix+subscriptionID)
}

func (r *RedisCacheRepository) getCached(ctx context.Context, key string) (*domain.Account, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account from cache: %w", err)
	}

	var acc domain.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		// Сломанную запись кеша просто удаляем.
		r.client.Del(ctx, key)
		return nil, nil
	}
	return &acc, nil
}

// InvalidateAccount удаляет аккаунт из кеша. Вызывается при каждой
// записи в основное хранилище.
func (r *RedisCacheRepository) InvalidateAccount(ctx context.Context, id uuid.UUID, subscriptionID string) error {
	keys := []string{accountKeyPrefix + id.String()}
	if subscriptionID != "" {
		keys = append(keys, subscriptionRefKeyPrefix+subscriptionID)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.log.Warnw("Failed to invalidate account cache", "error", err, "accountID", id)
		return fmt.Errorf("failed to invalidate account cache: %w", err)
	}
	return nil
}
