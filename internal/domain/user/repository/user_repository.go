package repository

import (
	"context"
	"order_core/internal/domain/user/model"
	"order_core/internal/pkg/txn"

	"gorm.io/gorm"
)

// UserRepository 接口定义
type UserRepository interface {
	// GetStatus 返回用户状态，found=false 表示用户不存在
	GetStatus(ctx context.Context, id string) (status int, found bool, err error)
}

// userRepository 实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建新的仓库实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetStatus 根据ID获取用户状态
func (r *userRepository) GetStatus(ctx context.Context, id string) (int, bool, error) {
	var users []model.User
	err := txn.DB(ctx, r.db).
		Select("id", "status").
		Where("id = ?", id).
		Limit(1).
		Find(&users).Error
	if err != nil {
		return 0, false, err
	}
	if len(users) == 0 {
		return 0, false, nil
	}
	return users[0].Status, true, nil
}
