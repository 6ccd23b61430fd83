package bootstrap

import (
	domainRepo "codeinject-go-server/domain/repository"
	"codeinject-go-server/repository"
	"codeinject-go-server/repository/memory"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories 所有持久化依赖
type Repositories struct {
	Users domainRepo.UserRepository
	Sites domainRepo.SiteRepository
	Pages domainRepo.PageRepository
	Files domainRepo.FileRepository

	db *gorm.DB
}

// NewRepositories 按 DB_TYPE 选择 PostgreSQL 或进程内实现
func NewRepositories(env *Env, logger *zap.Logger) (*Repositories, error) {
	if env.DBType == DBTypeMemory {
		logger.Warn("[Database] ⚠️ using in-memory repositories, data is lost on restart")
		return &Repositories{
			Users: memory.NewUserRepository(),
			Sites: memory.NewSiteRepository(),
			Pages: memory.NewPageRepository(),
			Files: memory.NewFileRepository(),
		}, nil
	}

	db, err := NewDatabase(env.DatabaseURL, !env.IsProduction(), logger)
	if err != nil {
		return nil, err
	}
	return &Repositories{
		Users: repository.NewUserRepository(db),
		Sites: repository.NewSiteRepository(db),
		Pages: repository.NewPageRepository(db),
		Files: repository.NewFileRepository(db),
		db:    db,
	}, nil
}

// Ping 健康检查用；内存实现永远健康
func (r *Repositories) Ping() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (r *Repositories) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
