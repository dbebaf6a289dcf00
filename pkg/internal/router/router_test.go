package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/model"
	"github.com/yeisme/histvault/pkg/internal/patch"
	"github.com/yeisme/histvault/pkg/internal/service"
	"github.com/yeisme/histvault/pkg/internal/storage"
	"github.com/yeisme/histvault/pkg/internal/storage/db"
	"github.com/yeisme/histvault/pkg/internal/types"
	"github.com/yeisme/histvault/pkg/middleware"
)

const testSecret = "router-test-secret"

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := gdb.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	engine := gin.New()
	engine.Use(
		middleware.StorageMiddleware(&storage.Manager{DB: &db.Client{DB: gdb}}),
		middleware.AuthMiddleware(configs.AuthConfig{
			Enabled:   true,
			JWTSecret: testSecret,
			SkipPaths: []string{"/auth", "/api/v1/health"},
		}),
	)

	Register(engine)

	return engine, gdb
}

func bearerFor(t *testing.T, userID, deviceID string) http.Header {
	t.Helper()

	claims := service.TokenClaims{
		DeviceID: deviceID,
		Type:     "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+raw)
	h.Set("X-Device-ID", deviceID)
	h.Set("Content-Type", "application/json")

	return h
}

func doJSON(engine *gin.Engine, method, path string, header http.Header, body, out any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if out != nil && w.Code < 300 {
		json.Unmarshal(w.Body.Bytes(), out)
	}

	return w
}

func TestSyncEndToEnd(t *testing.T) {
	engine, _ := newTestServer(t)
	header := bearerFor(t, "user-1", "dev-1")

	// 建库
	var vault types.VaultInfo
	if w := doJSON(engine, http.MethodPost, "/vaults", header, types.CreateVaultRequest{Name: "notes"}, &vault); w.Code != http.StatusOK {
		t.Fatalf("create vault: %d %s", w.Code, w.Body.String())
	}

	// 上报检查点 + 增量
	fileID := history.NewID(time.Now())
	ckptID := history.NewID(time.Now())
	diffID := history.NewID(time.Now())

	req := types.SyncVersionsRequest{
		VaultID: vault.ID,
		Versions: []types.SyncVersionItem{
			{ID: ckptID, FileID: fileID, FilePath: "doc.md", IsCheckpoint: true, Data: "hello", CreatedAt: time.Now()},
			{ID: diffID, FileID: fileID, FilePath: "doc.md", Data: patch.Diff("hello", "hello world").Text(), CreatedAt: time.Now()},
		},
	}

	var resp types.SyncVersionsResponse
	if w := doJSON(engine, http.MethodPost, "/sync/versions", header, req, &resp); w.Code != http.StatusOK {
		t.Fatalf("sync: %d %s", w.Code, w.Body.String())
	}

	if len(resp.Synced) != 2 || len(resp.Errors) != 0 {
		t.Fatalf("sync response: %+v", resp)
	}

	// 服务端重建最新内容
	var rec struct {
		Content string `json:"content"`
	}
	if w := doJSON(engine, http.MethodGet, "/vaults/"+vault.ID+"/files/"+fileID+"/reconstruct", header, nil, &rec); w.Code != http.StatusOK {
		t.Fatalf("reconstruct: %d %s", w.Code, w.Body.String())
	}

	if rec.Content != "hello world" {
		t.Fatalf("content = %q", rec.Content)
	}

	// 列表能看到这个库
	var list types.ListVaultsResponse
	doJSON(engine, http.MethodGet, "/vaults", header, nil, &list)

	if list.Total != 1 || list.Vaults[0].ID != vault.ID {
		t.Fatalf("list = %+v", list)
	}
}

func TestSyncForbiddenForOtherUser(t *testing.T) {
	engine, _ := newTestServer(t)
	owner := bearerFor(t, "owner", "dev-1")
	intruder := bearerFor(t, "intruder", "dev-2")

	var vault types.VaultInfo
	doJSON(engine, http.MethodPost, "/vaults", owner, types.CreateVaultRequest{Name: "private"}, &vault)

	req := types.SyncVersionsRequest{
		VaultID: vault.ID,
		Versions: []types.SyncVersionItem{
			{ID: history.NewID(time.Now()), FileID: history.NewID(time.Now()), FilePath: "x.md", IsCheckpoint: true, Data: "secret"},
		},
	}

	if w := doJSON(engine, http.MethodPost, "/sync/versions", intruder, req, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign vault, got %d", w.Code)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	engine, _ := newTestServer(t)

	w := doJSON(engine, http.MethodGet, "/vaults", http.Header{}, nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}
