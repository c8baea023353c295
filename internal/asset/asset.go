// Package asset defines the identity types shared by every lockreg component:
// asset identifiers scoped to one ownership registry and account addresses.
package asset

import (
	"strings"

	"github.com/Iron-Ham/lockreg/internal/errors"
)

// ID is an opaque asset identifier, analogous to a token id.
type ID string

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

// Validate reports an error if the identifier is empty.
func (id ID) Validate() error {
	if strings.TrimSpace(string(id)) == "" {
		return errors.NewValidationError("asset ID cannot be empty").WithField("assetID")
	}
	return nil
}

// Address identifies an account: an owner, a delegate or an operator.
type Address string

// Zero is the null identity. It never owns an asset and never holds a grant.
const Zero Address = ""

// IsZero reports whether a is the null identity.
func (a Address) IsZero() bool { return a == Zero }

// String returns the address, rendering the null identity as "none".
func (a Address) String() string {
	if a.IsZero() {
		return "none"
	}
	return string(a)
}

// Metadata is the registry-side description of an asset that derived tokens copy.
type Metadata struct {
	URI   string `json:"uri,omitempty"`   // Metadata pointer (token URI)
	Class string `json:"class,omitempty"` // Asset class, used for certificate policy
}
