package user

import (
	"order_core/internal/domain/user/repository"
	"order_core/internal/domain/user/service"
	"order_core/internal/pkg/registry"
)

// UserModule 用户身份协作方，只提供存在性校验，不注册路由
type UserModule struct{}

func init() {
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	// 其他模块都依赖用户校验
	return 1
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	return nil
}

// BuildService 供其他模块注入用户校验
func BuildService(ctx *registry.ModuleContext) service.UserService {
	return service.NewUserService(repository.NewUserRepository(ctx.DB))
}
