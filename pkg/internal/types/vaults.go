package types

import "time"

// VaultInfo 保险库信息.
type VaultInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ListVaultsResponse 保险库列表响应.
type ListVaultsResponse struct {
	Vaults []VaultInfo `json:"vaults"`
	Total  int         `json:"total"`
}

// CreateVaultRequest 创建保险库请求.
type CreateVaultRequest struct {
	Name string `json:"name" rule:"required,max=128"`
}
