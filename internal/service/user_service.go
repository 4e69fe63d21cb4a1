package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dont-forgetter-api/internal/dto"
	"github.com/noah-isme/dont-forgetter-api/internal/models"
	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	UpdateSettings(ctx context.Context, settings *models.UserSettings) error
}

// UserService handles the profile and event defaults of the signed-in user.
type UserService struct {
	repo      userRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService. cache may be nil.
func NewUserService(repo userRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	return &UserService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Get returns the user with quota counters.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile changes username and phone number.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid profile payload")
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = *req.PhoneNumber
	}
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return user, nil
}

// GetSettings returns the user's event defaults, served from cache when available.
func (s *UserService) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	key := settingsCacheKey(userID)
	var cached models.UserSettings
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	settings, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "settings not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	_ = s.cache.Set(ctx, key, settings, s.cacheTTL)
	return settings, nil
}

// UpdateSettings changes the provided defaults and drops the cached copy.
func (s *UserService) UpdateSettings(ctx context.Context, userID string, req dto.UpdateSettingsRequest) (*models.UserSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid settings payload")
	}
	settings, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "settings not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}

	if req.DefaultNotificationType != nil {
		settings.DefaultNotificationType = models.NotificationType(*req.DefaultNotificationType)
	}
	if req.DefaultTime != nil {
		settings.DefaultTime = *req.DefaultTime
	}
	if req.DefaultUTCOffset != nil {
		settings.DefaultUTCOffset = *req.DefaultUTCOffset
	}
	if req.SMSSenderName != nil {
		if name := strings.TrimSpace(*req.SMSSenderName); name != "" {
			settings.SMSSenderName = &name
		} else {
			settings.SMSSenderName = nil
		}
	}

	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "settings not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update settings")
	}
	if err := s.cache.Invalidate(ctx, settingsCacheKey(userID)); err != nil {
		s.logger.Warn("stale settings may be served until expiry", zap.String("user_id", userID), zap.Error(err))
	}
	return settings, nil
}

func settingsCacheKey(userID string) string {
	return "settings:" + userID
}
