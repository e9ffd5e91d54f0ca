package request

type CreateGrant struct {
	PrincipalID string `json:"principal_id" validate:"required,max=128"`
}
