package request

type ProvisionTenant struct {
	TenantID    string `json:"tenant_id" validate:"required,tenant_id"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
}

type UpdateTenant struct {
	DisplayName string `json:"display_name" validate:"required,max=128"`
}
