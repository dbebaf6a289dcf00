package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/model"
	nlog "github.com/yeisme/histvault/pkg/log"
)

// ReconstructService 服务端重建：与客户端共用 history 包的回放算法.
type ReconstructService struct{ *Service }

func NewReconstructService(c context.Context) *ReconstructService {
	return &ReconstructService{NewService(c)}
}

// dbVersionSource 把一个文件的全部版本行装进内存后充当回放源.
// 单文件版本数有守护进程的检查点合并兜底，整载是可接受的.
type dbVersionSource struct {
	versions []*history.VersionRecord // 按 ID 升序
}

func (s dbVersionSource) NearestCheckpoint(fileID, atOrBefore string) (*history.VersionRecord, error) {
	for i := len(s.versions) - 1; i >= 0; i-- {
		v := s.versions[i]
		if v.ID <= atOrBefore && v.Payload.IsCheckpoint() {
			return v, nil
		}
	}

	return nil, history.ErrNotFound
}

func (s dbVersionSource) VersionsInRange(fileID, after, through string) []*history.VersionRecord {
	out := make([]*history.VersionRecord, 0)

	for _, v := range s.versions {
		if v.ID > after && v.ID <= through {
			out = append(out, v)
		}
	}

	return out
}

// At 重建 vault 内某文件在版本 targetID 时刻的内容.
// targetID 为空表示最新版本.
func (r *ReconstructService) At(ctx context.Context, vault *model.Vault, fileID, targetID string) (string, error) {
	dbx := r.dbClient.GetDB().WithContext(ctx)

	var file model.File
	if err := dbx.Where("id = ? AND vault_id = ?", fileID, vault.ID).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrFileNotFound
		}

		return "", fmt.Errorf("lookup file: %w", err)
	}

	var rows []model.Version
	if err := dbx.Where("file_id = ?", file.ID).Order("id").Find(&rows).Error; err != nil {
		return "", fmt.Errorf("load versions: %w", err)
	}

	if len(rows) == 0 {
		return "", history.ErrNotFound
	}

	src := dbVersionSource{versions: make([]*history.VersionRecord, 0, len(rows))}
	for _, row := range rows {
		src.versions = append(src.versions, &history.VersionRecord{
			ID:        row.ID,
			FileID:    row.FileID,
			Payload:   history.RawPayload(row.IsCheckpoint, row.Data),
			CreatedAt: row.CreatedAt,
		})
	}

	sort.Slice(src.versions, func(i, j int) bool { return src.versions[i].ID < src.versions[j].ID })

	if targetID == "" {
		targetID = src.versions[len(src.versions)-1].ID
	}

	return history.Reconstruct(ctx, src, file.ID, targetID, nlog.Logger().With().Str("component", "reconstruct").Logger())
}
