package provision

import "errors"

var (
	// ErrProvisioningFailed wraps a provisioning step failure. The
	// tenant record carries the step error text in provision_error.
	ErrProvisioningFailed = errors.New("provisioning failed")

	// ErrNotReprovisionable is returned when re-provisioning is
	// requested for a tenant that is not in the failed state.
	ErrNotReprovisionable = errors.New("tenant is not in a failed state")
)
