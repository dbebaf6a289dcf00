package vsync

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/types"
)

// Syncer 周期性地把本地未同步的版本批量推到服务端.
// 整个协议按版本 ID 幂等：上一轮上传成功但 MarkSynced 前崩溃，
// 下一轮重传同一批也只是让服务端再回一遍 synced.
type Syncer struct {
	client    *Client
	store     *history.Store
	vaultID   string
	vaultName string
	batch     int
	logger    zerolog.Logger
}

// NewSyncer 创建同步器并解析目标保险库：按配置的库名在服务端
// 查找，不存在则创建（创建接口按名字幂等）.
func NewSyncer(ctx context.Context, client *Client, store *history.Store, cfg *configs.SyncConfig, vaultName string, logger zerolog.Logger) (*Syncer, error) {
	vaultID, err := ensureVault(ctx, client, vaultName)
	if err != nil {
		return nil, err
	}

	return &Syncer{
		client:    client,
		store:     store,
		vaultID:   vaultID,
		vaultName: vaultName,
		batch:     cfg.BatchSize,
		logger:    logger.With().Str("component", "vsync.syncer").Logger(),
	}, nil
}

func ensureVault(ctx context.Context, client *Client, name string) (string, error) {
	var list types.ListVaultsResponse
	if err := client.do(ctx, http.MethodGet, "/vaults", nil, &list); err != nil {
		return "", fmt.Errorf("list vaults: %w", err)
	}

	for _, v := range list.Vaults {
		if v.Name == name {
			return v.ID, nil
		}
	}

	var created types.VaultInfo
	if err := client.do(ctx, http.MethodPost, "/vaults", types.CreateVaultRequest{Name: name}, &created); err != nil {
		return "", fmt.Errorf("create vault: %w", err)
	}

	return created.ID, nil
}

// SyncPass 执行一轮同步.没有待同步版本时什么都不做.
func (s *Syncer) SyncPass(ctx context.Context) error {
	for {
		pending := s.store.UnsyncedVersions(s.batch)
		if len(pending) == 0 {
			return nil
		}

		synced, err := s.upload(ctx, pending)
		if status := errStatus(err); status == http.StatusNotFound || status == http.StatusForbidden {
			// 缓存的库 ID 过期（服务端删库重建），按名字重新对账后再试一次
			s.logger.Warn().Str("vault_id", s.vaultID).Msg("cached vault rejected, reconciling by name")

			id, verr := ensureVault(ctx, s.client, s.vaultName)
			if verr != nil {
				return fmt.Errorf("reconcile vault: %w", verr)
			}

			s.vaultID = id
			synced, err = s.upload(ctx, pending)
		}

		if err != nil {
			return err
		}

		s.store.MarkSynced(synced)

		if err := s.store.Flush(); err != nil {
			return fmt.Errorf("flush after sync: %w", err)
		}

		// 有条目被拒时停止本轮，否则会在同一批上打转
		if len(synced) < len(pending) {
			return nil
		}

		if len(pending) < s.batch {
			return nil
		}
	}
}

func (s *Syncer) upload(ctx context.Context, pending []*history.VersionRecord) ([]string, error) {
	req := types.SyncVersionsRequest{
		VaultID:  s.vaultID,
		Versions: make([]types.SyncVersionItem, 0, len(pending)),
	}

	for _, v := range pending {
		file, err := s.store.GetFileByID(v.FileID)
		if err != nil {
			return nil, fmt.Errorf("resolve file %s: %w", v.FileID, err)
		}

		req.Versions = append(req.Versions, types.SyncVersionItem{
			ID:           v.ID,
			FileID:       v.FileID,
			FilePath:     file.Path,
			IsCheckpoint: v.Payload.IsCheckpoint(),
			Data:         v.Payload.Data(),
			CreatedAt:    v.CreatedAt,
		})
	}

	var resp types.SyncVersionsResponse
	if err := s.client.do(ctx, http.MethodPost, "/sync/versions", req, &resp); err != nil {
		return nil, fmt.Errorf("upload versions: %w", err)
	}

	for _, e := range resp.Errors {
		s.logger.Warn().
			Str("version_id", e.VersionID).
			Str("reason", e.Error).
			Msg("version rejected by server")
	}

	return resp.Synced, nil
}
