package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/model"
	"github.com/yeisme/histvault/pkg/internal/patch"
	"github.com/yeisme/histvault/pkg/internal/storage/db"
	"github.com/yeisme/histvault/pkg/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := gdb.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &Service{dbClient: &db.Client{DB: gdb}}
}

func seedVault(t *testing.T, svc *Service) (*model.User, *model.Vault) {
	t.Helper()

	user := model.User{ID: history.NewID(time.Now()), Name: "alice"}
	if err := svc.dbClient.GetDB().Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	vault := model.Vault{ID: history.NewID(time.Now()), UserID: user.ID, Name: "notes"}
	if err := svc.dbClient.GetDB().Create(&vault).Error; err != nil {
		t.Fatalf("create vault: %v", err)
	}

	return &user, &vault
}

func checkpointItem(fileID, path, text string) types.SyncVersionItem {
	return types.SyncVersionItem{
		ID:           history.NewID(time.Now()),
		FileID:       fileID,
		FilePath:     path,
		IsCheckpoint: true,
		Data:         text,
		CreatedAt:    time.Now(),
	}
}

func TestIngestIdempotent(t *testing.T) {
	svc := newTestService(t)
	_, vault := seedVault(t, svc)
	sync := &SyncService{svc}

	item := checkpointItem(history.NewID(time.Now()), "a.md", "hello")
	req := types.SyncVersionsRequest{VaultID: vault.ID, Versions: []types.SyncVersionItem{item}}

	for round := range 2 {
		resp := sync.IngestVersions(context.Background(), vault, "dev1", req)
		if len(resp.Errors) != 0 {
			t.Fatalf("round %d: unexpected errors: %+v", round, resp.Errors)
		}

		if len(resp.Synced) != 1 || resp.Synced[0] != item.ID {
			t.Fatalf("round %d: synced = %v", round, resp.Synced)
		}
	}

	var count int64
	svc.dbClient.GetDB().Model(&model.Version{}).Count(&count)

	if count != 1 {
		t.Fatalf("expected 1 version row after duplicate upload, got %d", count)
	}
}

func TestIngestMergeByFileID(t *testing.T) {
	svc := newTestService(t)
	_, vault := seedVault(t, svc)
	sync := &SyncService{svc}

	fileID := history.NewID(time.Now())

	first := checkpointItem(fileID, "draft.md", "v1")
	resp := sync.IngestVersions(context.Background(), vault, "dev1",
		types.SyncVersionsRequest{VaultID: vault.ID, Versions: []types.SyncVersionItem{first}})

	if len(resp.Errors) != 0 {
		t.Fatalf("first upload errors: %+v", resp.Errors)
	}

	// 同一文件 ID、新路径：按 ID 归并，路径跟着更新
	renamed := checkpointItem(fileID, "final.md", "v2")
	resp = sync.IngestVersions(context.Background(), vault, "dev1",
		types.SyncVersionsRequest{VaultID: vault.ID, Versions: []types.SyncVersionItem{renamed}})

	if len(resp.Errors) != 0 {
		t.Fatalf("renamed upload errors: %+v", resp.Errors)
	}

	var files []model.File
	svc.dbClient.GetDB().Find(&files)

	if len(files) != 1 {
		t.Fatalf("expected a single file after rename, got %d", len(files))
	}

	if files[0].Path != "final.md" {
		t.Fatalf("path = %q, want final.md", files[0].Path)
	}
}

func TestIngestMergeByPath(t *testing.T) {
	svc := newTestService(t)
	_, vault := seedVault(t, svc)
	sync := &SyncService{svc}

	existing := checkpointItem(history.NewID(time.Now()), "shared.md", "from device A")
	sync.IngestVersions(context.Background(), vault, "devA",
		types.SyncVersionsRequest{VaultID: vault.ID, Versions: []types.SyncVersionItem{existing}})

	// 另一台设备对同一路径生成了不同的文件 ID：按路径归并到已有文件
	other := checkpointItem(history.NewID(time.Now()), "shared.md", "from device B")
	resp := sync.IngestVersions(context.Background(), vault, "devB",
		types.SyncVersionsRequest{VaultID: vault.ID, Versions: []types.SyncVersionItem{other}})

	if len(resp.Errors) != 0 {
		t.Fatalf("second device errors: %+v", resp.Errors)
	}

	var files []model.File
	svc.dbClient.GetDB().Find(&files)

	if len(files) != 1 {
		t.Fatalf("expected path merge into one file, got %d files", len(files))
	}

	var versions []model.Version
	svc.dbClient.GetDB().Where("file_id = ?", existing.FileID).Find(&versions)

	if len(versions) != 2 {
		t.Fatalf("expected both versions on the merged file, got %d", len(versions))
	}
}

func TestIngestStoresDiffWithoutBase(t *testing.T) {
	svc := newTestService(t)
	_, vault := seedVault(t, svc)
	sync := &SyncService{svc}

	// 服务端不校验增量的基底，原样入库
	diff := checkpointItem(history.NewID(time.Now()), "a.md", patch.Diff("", "hello").Text())
	diff.IsCheckpoint = false

	resp := sync.IngestVersions(context.Background(), vault, "dev1",
		types.SyncVersionsRequest{VaultID: vault.ID, Versions: []types.SyncVersionItem{diff}})

	if len(resp.Synced) != 1 || len(resp.Errors) != 0 {
		t.Fatalf("orphan diff must still be stored: %+v", resp)
	}
}

func TestIngestPartialBatch(t *testing.T) {
	svc := newTestService(t)
	user, vault := seedVault(t, svc)
	sync := &SyncService{svc}

	// 另一个库里已经有这个文件 ID
	other := model.Vault{ID: history.NewID(time.Now()), UserID: user.ID, Name: "other"}
	if err := svc.dbClient.GetDB().Create(&other).Error; err != nil {
		t.Fatalf("create other vault: %v", err)
	}

	stolenID := history.NewID(time.Now())
	sync.IngestVersions(context.Background(), &other, "dev1",
		types.SyncVersionsRequest{VaultID: other.ID, Versions: []types.SyncVersionItem{checkpointItem(stolenID, "x.md", "owned")}})

	good := checkpointItem(history.NewID(time.Now()), "ok.md", "fine")
	bad := checkpointItem(stolenID, "x.md", "cross-vault")

	resp := sync.IngestVersions(context.Background(), vault, "dev1",
		types.SyncVersionsRequest{VaultID: vault.ID, Versions: []types.SyncVersionItem{good, bad}})

	if len(resp.Synced) != 1 || resp.Synced[0] != good.ID {
		t.Fatalf("good item should survive a bad sibling: %+v", resp)
	}

	if len(resp.Errors) != 1 || resp.Errors[0].VersionID != bad.ID {
		t.Fatalf("bad item should be reported per-entry: %+v", resp)
	}
}

func TestVaultAuthorize(t *testing.T) {
	svc := newTestService(t)
	_, vault := seedVault(t, svc)
	vaults := &VaultService{svc}

	if _, err := vaults.Authorize(context.Background(), vault.UserID, vault.ID); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}

	if _, err := vaults.Authorize(context.Background(), "someone-else", vault.ID); err != ErrVaultForbidden {
		t.Fatalf("expected ErrVaultForbidden, got %v", err)
	}

	if _, err := vaults.Authorize(context.Background(), vault.UserID, "missing"); err != ErrVaultNotFound {
		t.Fatalf("expected ErrVaultNotFound, got %v", err)
	}
}

func TestVaultCreateIdempotent(t *testing.T) {
	svc := newTestService(t)
	user, _ := seedVault(t, svc)
	vaults := &VaultService{svc}

	a, err := vaults.Create(context.Background(), user.ID, types.CreateVaultRequest{Name: "work"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	b, err := vaults.Create(context.Background(), user.ID, types.CreateVaultRequest{Name: "work"})
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}

	if a.ID != b.ID {
		t.Fatalf("repeated create should return the same vault: %s vs %s", a.ID, b.ID)
	}
}

func TestServerReconstruct(t *testing.T) {
	svc := newTestService(t)
	_, vault := seedVault(t, svc)
	sync := &SyncService{svc}

	fileID := history.NewID(time.Now())
	ckpt := checkpointItem(fileID, "doc.md", "hello world")

	diff := types.SyncVersionItem{
		ID:           history.NewID(time.Now()),
		FileID:       fileID,
		FilePath:     "doc.md",
		IsCheckpoint: false,
		Data:         patch.Diff("hello world", "hello brave world").Text(),
		CreatedAt:    time.Now(),
	}

	resp := sync.IngestVersions(context.Background(), vault, "dev1",
		types.SyncVersionsRequest{VaultID: vault.ID, Versions: []types.SyncVersionItem{ckpt, diff}})
	if len(resp.Errors) != 0 {
		t.Fatalf("ingest errors: %+v", resp.Errors)
	}

	rec := &ReconstructService{svc}

	got, err := rec.At(context.Background(), vault, fileID, "")
	if err != nil {
		t.Fatalf("reconstruct latest: %v", err)
	}

	if got != "hello brave world" {
		t.Fatalf("latest = %q", got)
	}

	got, err = rec.At(context.Background(), vault, fileID, ckpt.ID)
	if err != nil {
		t.Fatalf("reconstruct at checkpoint: %v", err)
	}

	if got != "hello world" {
		t.Fatalf("at checkpoint = %q", got)
	}
}
