package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/histvault/pkg/internal/model"
	"github.com/yeisme/histvault/pkg/internal/types"
	nlog "github.com/yeisme/histvault/pkg/log"
	"github.com/yeisme/histvault/pkg/metrics"
)

// SyncService 处理客户端的版本上报.
type SyncService struct{ *Service }

func NewSyncService(c context.Context) *SyncService {
	return &SyncService{NewService(c)}
}

// IngestVersions 批量入库版本.逐条处理：任一条失败只影响该条，
// 其余照常入库.已存在的版本 ID 直接计入 synced，重复上报是无害的.
func (s *SyncService) IngestVersions(ctx context.Context, vault *model.Vault, deviceID string, req types.SyncVersionsRequest) types.SyncVersionsResponse {
	resp := types.SyncVersionsResponse{Synced: make([]string, 0, len(req.Versions))}

	for _, item := range req.Versions {
		if err := s.ingestOne(ctx, vault, deviceID, item); err != nil {
			resp.Errors = append(resp.Errors, types.SyncVersionError{VersionID: item.ID, Error: err.Error()})
			metrics.VersionsRejected.WithLabelValues(vault.ID).Inc()

			nlog.Logger().Warn().
				Err(err).
				Str("vault_id", vault.ID).
				Str("version_id", item.ID).
				Msg("version rejected")

			continue
		}

		resp.Synced = append(resp.Synced, item.ID)
	}

	metrics.VersionsSynced.WithLabelValues(vault.ID).Add(float64(len(resp.Synced)))

	return resp
}

func (s *SyncService) ingestOne(ctx context.Context, vault *model.Vault, deviceID string, item types.SyncVersionItem) error {
	dbx := s.dbClient.GetDB().WithContext(ctx)

	// 幂等键：版本 ID 已存在说明此前某次上报已入库
	var count int64
	if err := dbx.Model(&model.Version{}).Where("id = ?", item.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("check version: %w", err)
	}

	if count > 0 {
		return nil
	}

	// 服务端不校验增量是否有可用的基底：原样存储客户端断言的
	// 检查点标记与载荷，重建端用同一套最近检查点算法兜底
	file, err := s.resolveFile(ctx, vault, item)
	if err != nil {
		return err
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	v := model.Version{
		ID:           item.ID,
		FileID:       file.ID,
		DeviceID:     deviceID,
		IsCheckpoint: item.IsCheckpoint,
		Data:         item.Data,
		CreatedAt:    createdAt,
	}
	if err := dbx.Create(&v).Error; err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	return dbx.Model(&model.File{}).Where("id = ?", file.ID).
		Update("updated_at", time.Now()).Error
}

// resolveFile 定位版本所属的文件.按文件 ID 合并优先于按路径合并：
// 同一客户端改名后上报的版本仍归并到原文件；ID 未见过时才按
// (vault, path) 归并到路径上的活跃文件，两者都没有则建新档.
func (s *SyncService) resolveFile(ctx context.Context, vault *model.Vault, item types.SyncVersionItem) (*model.File, error) {
	dbx := s.dbClient.GetDB().WithContext(ctx)

	var file model.File

	err := dbx.Where("id = ?", item.FileID).First(&file).Error
	if err == nil {
		if file.VaultID != vault.ID {
			return nil, errors.New("file belongs to another vault")
		}

		// 客户端侧改名随版本上报同步过来
		if file.Path != item.FilePath && item.FilePath != "" {
			if err := dbx.Model(&model.File{}).Where("id = ?", file.ID).
				Update("path", item.FilePath).Error; err != nil {
				return nil, fmt.Errorf("update file path: %w", err)
			}

			file.Path = item.FilePath
		}

		return &file, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup file: %w", err)
	}

	err = dbx.Where("vault_id = ? AND path = ? AND deleted_at IS NULL", vault.ID, item.FilePath).
		First(&file).Error
	if err == nil {
		return &file, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup file by path: %w", err)
	}

	file = model.File{ID: item.FileID, VaultID: vault.ID, Path: item.FilePath}
	if err := dbx.Create(&file).Error; err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	return &file, nil
}
