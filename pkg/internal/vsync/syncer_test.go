package vsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/yeisme/histvault/pkg/configs"
	"github.com/yeisme/histvault/pkg/internal/history"
	"github.com/yeisme/histvault/pkg/internal/types"
)

// fakeServer 内存里模拟同步服务端：记录收到的版本，按 ID 幂等.
type fakeServer struct {
	mu       sync.Mutex
	vaults   []types.VaultInfo
	received map[string]types.SyncVersionItem
	uploads  int
}

// hasVault 调用方须持有 fs.mu.
func (fs *fakeServer) hasVault(id string) bool {
	for _, v := range fs.vaults {
		if v.ID == id {
			return true
		}
	}

	return false
}

func newFakeServer() (*fakeServer, *httptest.Server) {
	fs := &fakeServer{received: map[string]types.SyncVersionItem{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /vaults", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()

		json.NewEncoder(w).Encode(types.ListVaultsResponse{Vaults: fs.vaults, Total: len(fs.vaults)})
	})
	mux.HandleFunc("POST /vaults", func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateVaultRequest
		json.NewDecoder(r.Body).Decode(&req)

		fs.mu.Lock()
		defer fs.mu.Unlock()

		info := types.VaultInfo{ID: fmt.Sprintf("vault-%d", len(fs.vaults)+1), Name: req.Name}
		fs.vaults = append(fs.vaults, info)
		json.NewEncoder(w).Encode(info)
	})
	mux.HandleFunc("POST /sync/versions", func(w http.ResponseWriter, r *http.Request) {
		var req types.SyncVersionsRequest
		json.NewDecoder(r.Body).Decode(&req)

		fs.mu.Lock()
		defer fs.mu.Unlock()

		if !fs.hasVault(req.VaultID) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "vault not found"})

			return
		}

		fs.uploads++

		resp := types.SyncVersionsResponse{}
		for _, item := range req.Versions {
			fs.received[item.ID] = item
			resp.Synced = append(resp.Synced, item.ID)
		}

		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		// 刷新响应按最小契约只回新的访问令牌
		json.NewEncoder(w).Encode(map[string]string{"access_token": "refreshed-at"})
	})

	return fs, httptest.NewServer(mux)
}

func newTestStore(t *testing.T) (*history.Store, *history.Engine) {
	t.Helper()

	memFs := afero.NewMemMapFs()

	store, err := history.NewStore(memFs, "state.json", zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	return store, history.NewEngine(store, zerolog.Nop())
}

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	memFs := afero.NewMemMapFs()

	creds := &Credentials{AccessToken: "at", RefreshToken: "rt", DeviceID: "dev-1"}
	if err := SaveCredentials(memFs, "creds.json", creds); err != nil {
		t.Fatalf("save creds: %v", err)
	}

	client, err := NewClient(
		&configs.SyncConfig{ServerURL: serverURL, CredentialsPath: "creds.json"},
		&configs.CircuitBreakerConfig{Enabled: false},
		memFs, zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	return client
}

func TestSyncPassUploadsAndMarks(t *testing.T) {
	fake, srv := newFakeServer()
	defer srv.Close()

	store, engine := newTestStore(t)
	ctx := context.Background()

	if _, err := engine.Save(ctx, "a.md", "hello"); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := engine.Save(ctx, "a.md", "hello world"); err != nil {
		t.Fatalf("save: %v", err)
	}

	client := testClient(t, srv.URL)

	syncer, err := NewSyncer(ctx, client, store, &configs.SyncConfig{BatchSize: 10}, "notes", zerolog.Nop())
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}

	if err := syncer.SyncPass(ctx); err != nil {
		t.Fatalf("sync pass: %v", err)
	}

	if len(fake.received) != 2 {
		t.Fatalf("server should hold 2 versions, got %d", len(fake.received))
	}

	for _, item := range fake.received {
		if item.FilePath != "a.md" {
			t.Fatalf("uploaded wrong path: %+v", item)
		}
	}

	if pending := store.UnsyncedVersions(10); len(pending) != 0 {
		t.Fatalf("all versions should be marked synced, %d left", len(pending))
	}

	// 再跑一轮不该产生任何上传
	before := fake.uploads

	if err := syncer.SyncPass(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if fake.uploads != before {
		t.Fatalf("idle pass must not upload, uploads went %d -> %d", before, fake.uploads)
	}
}

func TestEnsureVaultFindsExisting(t *testing.T) {
	fake, srv := newFakeServer()
	defer srv.Close()

	fake.vaults = []types.VaultInfo{{ID: "existing", Name: "notes"}}

	client := testClient(t, srv.URL)

	id, err := ensureVault(context.Background(), client, "notes")
	if err != nil {
		t.Fatalf("ensure vault: %v", err)
	}

	if id != "existing" {
		t.Fatalf("should reuse the existing vault, got %s", id)
	}
}

// TestSyncPassReconcilesStaleVault 服务端删库重建后，缓存的库 ID
// 被拒时按名字重新对账并在同一轮里完成上传.
func TestSyncPassReconcilesStaleVault(t *testing.T) {
	fake, srv := newFakeServer()
	defer srv.Close()

	store, engine := newTestStore(t)
	ctx := context.Background()

	client := testClient(t, srv.URL)

	syncer, err := NewSyncer(ctx, client, store, &configs.SyncConfig{BatchSize: 10}, "notes", zerolog.Nop())
	if err != nil {
		t.Fatalf("new syncer: %v", err)
	}

	// 模拟服务端丢库后用新 ID 重建同名库
	fake.mu.Lock()
	fake.vaults = []types.VaultInfo{{ID: "vault-rebuilt", Name: "notes"}}
	fake.mu.Unlock()

	if _, err := engine.Save(ctx, "a.md", "hello"); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := syncer.SyncPass(ctx); err != nil {
		t.Fatalf("sync pass must recover from a stale vault id: %v", err)
	}

	if len(fake.received) != 1 {
		t.Fatalf("server should hold 1 version after reconciliation, got %d", len(fake.received))
	}

	if syncer.vaultID != "vault-rebuilt" {
		t.Fatalf("syncer should adopt the rebuilt vault id, got %s", syncer.vaultID)
	}

	if pending := store.UnsyncedVersions(10); len(pending) != 0 {
		t.Fatalf("version should be marked synced, %d left", len(pending))
	}
}

// TestRefreshKeepsRefreshToken 刷新响应省略 refresh_token 时
// 保留原值，不把缓存的刷新令牌清空.
func TestRefreshKeepsRefreshToken(t *testing.T) {
	_, srv := newFakeServer()
	defer srv.Close()

	memFs := afero.NewMemMapFs()

	creds := &Credentials{AccessToken: "old-at", RefreshToken: "rt", DeviceID: "dev-1"}
	if err := SaveCredentials(memFs, "creds.json", creds); err != nil {
		t.Fatalf("save creds: %v", err)
	}

	client, err := NewClient(
		&configs.SyncConfig{ServerURL: srv.URL, CredentialsPath: "creds.json"},
		&configs.CircuitBreakerConfig{Enabled: false},
		memFs, zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := client.refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	stored, err := LoadCredentials(memFs, "creds.json")
	if err != nil {
		t.Fatalf("load creds: %v", err)
	}

	if stored.AccessToken != "refreshed-at" {
		t.Errorf("access token = %q, want %q", stored.AccessToken, "refreshed-at")
	}

	if stored.RefreshToken != "rt" {
		t.Errorf("refresh token = %q, want the original to survive", stored.RefreshToken)
	}
}

func TestLoadCredentialsMissing(t *testing.T) {
	memFs := afero.NewMemMapFs()

	if _, err := LoadCredentials(memFs, "missing.json"); err != ErrReauthRequired {
		t.Fatalf("missing credentials must demand reauth, got %v", err)
	}
}
