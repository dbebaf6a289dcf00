// Package service 实现同步服务端的业务逻辑.
package service

import (
	"context"

	ctxPkg "github.com/yeisme/histvault/pkg/context"
	"github.com/yeisme/histvault/pkg/internal/storage/db"
)

// Service 聚合各业务服务共享的存储客户端.
type Service struct {
	dbClient *db.Client
}

func NewService(c context.Context) *Service {
	return &Service{dbClient: ctxPkg.GetDBClient(c)}
}
