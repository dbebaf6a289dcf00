package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yeisme/histvault/pkg/configs"
)

// createPgSQLDialector 创建PostgreSQL dialector.
func createPgSQLDialector(dsn string) gorm.Dialector {
	return postgres.Open(dsn)
}

// RegisterPgSQLDialector 注册PostgreSQL dialector工厂函数.
func RegisterPgSQLDialector() {
	RegisterDialectorFactory(configs.PostgreSQL, createPgSQLDialector)
	RegisterDialectorFactory(configs.Postgres, createPgSQLDialector)
	RegisterDialectorFactory(configs.Pg, createPgSQLDialector)
}

func init() {
	RegisterPgSQLDialector()
}
