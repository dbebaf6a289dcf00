package types

// StatsSummary 服务端整体统计（当前用户）.
type StatsSummary struct {
	TotalVaults      int   `json:"total_vaults"`
	TotalFiles       int   `json:"total_files"`
	ActiveFiles      int   `json:"active_files"`
	DeletedFiles     int   `json:"deleted_files"`
	TotalVersions    int   `json:"total_versions"`
	TotalCheckpoints int   `json:"total_checkpoints"`
	StorageBytes     int64 `json:"storage_bytes"`
}

// StatsVaultItem 按保险库聚合.
type StatsVaultItem struct {
	VaultID   string `json:"vault_id"`
	VaultName string `json:"vault_name"`
	Files     int    `json:"files"`
	Versions  int    `json:"versions"`
	Bytes     int64  `json:"bytes"`
}

// StatsResponse 统计响应.
type StatsResponse struct {
	Summary StatsSummary     `json:"summary"`
	Vaults  []StatsVaultItem `json:"vaults"`
}
