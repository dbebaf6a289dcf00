package service

import (
	"context"
	"fmt"

	"github.com/yeisme/histvault/pkg/internal/model"
	"github.com/yeisme/histvault/pkg/internal/types"
)

// StatsService 提供当前用户的存储统计.
type StatsService struct{ *Service }

func NewStatsService(c context.Context) *StatsService { return &StatsService{NewService(c)} }

// Summary 汇总当前用户的保险库/文件/版本规模.
func (s *StatsService) Summary(ctx context.Context, userID string) (types.StatsResponse, error) {
	dbx := s.dbClient.GetDB().WithContext(ctx)

	var vaults []model.Vault
	if err := dbx.Where("user_id = ?", userID).Order("created_at").Find(&vaults).Error; err != nil {
		return types.StatsResponse{}, fmt.Errorf("list vaults: %w", err)
	}

	resp := types.StatsResponse{Vaults: make([]types.StatsVaultItem, 0, len(vaults))}
	resp.Summary.TotalVaults = len(vaults)

	for _, v := range vaults {
		// 按库聚合文件与版本.SQLite/MySQL/Postgres 三方言兼容的聚合写法
		var fileAgg struct {
			Total   int64 `gorm:"column:total"`
			Active  int64 `gorm:"column:active"`
			Deleted int64 `gorm:"column:deleted"`
		}
		if err := dbx.Model(&model.File{}).
			Select("COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN deleted_at IS NULL THEN 1 ELSE 0 END),0) AS active, "+
				"COALESCE(SUM(CASE WHEN deleted_at IS NOT NULL THEN 1 ELSE 0 END),0) AS deleted").
			Where("vault_id = ?", v.ID).
			Scan(&fileAgg).Error; err != nil {
			return types.StatsResponse{}, fmt.Errorf("aggregate files: %w", err)
		}

		var verAgg struct {
			Cnt   int64 `gorm:"column:cnt"`
			Ckpts int64 `gorm:"column:ckpts"`
			Bytes int64 `gorm:"column:bytes"`
		}
		if err := dbx.Model(&model.Version{}).
			Select("COUNT(*) AS cnt, "+
				"COALESCE(SUM(CASE WHEN is_checkpoint THEN 1 ELSE 0 END),0) AS ckpts, "+
				"COALESCE(SUM(LENGTH(data)),0) AS bytes").
			Where("file_id IN (?)", dbx.Model(&model.File{}).Select("id").Where("vault_id = ?", v.ID)).
			Scan(&verAgg).Error; err != nil {
			return types.StatsResponse{}, fmt.Errorf("aggregate versions: %w", err)
		}

		resp.Summary.TotalFiles += int(fileAgg.Total)
		resp.Summary.ActiveFiles += int(fileAgg.Active)
		resp.Summary.DeletedFiles += int(fileAgg.Deleted)
		resp.Summary.TotalVersions += int(verAgg.Cnt)
		resp.Summary.TotalCheckpoints += int(verAgg.Ckpts)
		resp.Summary.StorageBytes += verAgg.Bytes

		resp.Vaults = append(resp.Vaults, types.StatsVaultItem{
			VaultID:   v.ID,
			VaultName: v.Name,
			Files:     int(fileAgg.Total),
			Versions:  int(verAgg.Cnt),
			Bytes:     verAgg.Bytes,
		})
	}

	return resp, nil
}
