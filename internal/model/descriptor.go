package model

import (
	"fmt"
	"time"
)

// ConnectionDescriptor records how to reach one tenant's database.
// SecretRef is a lookup key into the secret store; the credential itself
// never appears in a descriptor or in any API response.
type ConnectionDescriptor struct {
	TenantID      TenantID  `json:"tenant_id" db:"tenant_id"`
	Host          string    `json:"host" db:"host"`
	Port          int       `json:"port" db:"port"`
	DatabaseName  string    `json:"database_name" db:"database_name"`
	Role          string    `json:"role" db:"role"`
	SecretRef     string    `json:"secret_ref" db:"secret_ref"`
	IsolationMode string    `json:"isolation_mode" db:"isolation_mode"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DSN renders a pgx connection string with the resolved password.
// The password is passed in by the caller at open time and never stored.
func (d ConnectionDescriptor) DSN(password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.Role, password, d.Host, d.Port, d.DatabaseName)
}
