package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/model"
	"github.com/yeisme/histvault/pkg/internal/types"
)

// VaultService 保险库管理.
type VaultService struct{ *Service }

func NewVaultService(c context.Context) *VaultService {
	return &VaultService{NewService(c)}
}

// List 列出当前用户的保险库.
func (s *VaultService) List(ctx context.Context, userID string) (types.ListVaultsResponse, error) {
	var vaults []model.Vault
	if err := s.dbClient.GetDB().WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&vaults).Error; err != nil {
		return types.ListVaultsResponse{}, fmt.Errorf("list vaults: %w", err)
	}

	out := make([]types.VaultInfo, 0, len(vaults))
	for _, v := range vaults {
		out = append(out, types.VaultInfo{ID: v.ID, Name: v.Name, CreatedAt: v.CreatedAt})
	}

	return types.ListVaultsResponse{Vaults: out, Total: len(out)}, nil
}

// Create 创建保险库.(user_id, name) 已存在时返回既有库，创建是幂等的.
func (s *VaultService) Create(ctx context.Context, userID string, req types.CreateVaultRequest) (types.VaultInfo, error) {
	dbx := s.dbClient.GetDB().WithContext(ctx)

	var existing model.Vault
	err := dbx.Where("user_id = ? AND name = ?", userID, req.Name).First(&existing).Error
	if err == nil {
		return types.VaultInfo{ID: existing.ID, Name: existing.Name, CreatedAt: existing.CreatedAt}, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return types.VaultInfo{}, fmt.Errorf("lookup vault: %w", err)
	}

	v := model.Vault{ID: history.NewID(time.Now()), UserID: userID, Name: req.Name}
	if err := dbx.Create(&v).Error; err != nil {
		return types.VaultInfo{}, fmt.Errorf("create vault: %w", err)
	}

	return types.VaultInfo{ID: v.ID, Name: v.Name, CreatedAt: v.CreatedAt}, nil
}

// Authorize 校验保险库归属.不存在返回 ErrVaultNotFound，属他人返回 ErrVaultForbidden.
func (s *VaultService) Authorize(ctx context.Context, userID, vaultID string) (*model.Vault, error) {
	var v model.Vault
	if err := s.dbClient.GetDB().WithContext(ctx).
		Where("id = ?", vaultID).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVaultNotFound
		}

		return nil, fmt.Errorf("lookup vault: %w", err)
	}

	if v.UserID != userID {
		return nil, ErrVaultForbidden
	}

	return &v, nil
}
