package service

import (
	"context"
	"order_core/internal/domain/user/model"
	"order_core/internal/domain/user/repository"
	"order_core/pkg/apperr"
)

// UserService 用户身份校验
type UserService interface {
	// EnsureActive 用户不存在、被封禁或已注销时返回 apperr.ErrUserNotFound
	EnsureActive(ctx context.Context, userID string) error
}

// userService 实现
type userService struct {
	repo repository.UserRepository
}

// NewUserService 创建用户服务
func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) EnsureActive(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.ErrUserNotFound
	}
	status, found, err := s.repo.GetStatus(ctx, userID)
	if err != nil {
		return err
	}
	if !found || status == model.StatusBanned || status == model.StatusDeleted {
		return apperr.ErrUserNotFound.WithDetail("user %s", userID)
	}
	return nil
}
