package auth

import (
	"strings"

	"github.com/dmitrijs2005/resumegate/internal/cryptox"
)

type Role string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
)

func (r Role) String() string { return string(r) }

// CredentialVerifier checks role passwords against independently configured
// bcrypt hashes. The admin secret does not grant viewer access or the other
// way round.
type CredentialVerifier struct {
	hashes  map[Role]string
	compare func(hash string, password []byte) bool
}

func NewCredentialVerifier(viewerHash, adminHash string) *CredentialVerifier {
	return &CredentialVerifier{
		hashes: map[Role]string{
			RoleViewer: strings.TrimSpace(viewerHash),
			RoleAdmin:  strings.TrimSpace(adminHash),
		},
		compare: cryptox.ComparePassword,
	}
}

// Verify reports whether candidate is the password of role. It fails closed
// when either side is empty or the role is unknown.
func (v *CredentialVerifier) Verify(candidate string, role Role) bool {
	hash := v.hashes[role]
	if candidate == "" || hash == "" {
		return false
	}
	return v.compare(hash, []byte(candidate))
}

// Configured reports whether role has a hash at all.
func (v *CredentialVerifier) Configured(role Role) bool {
	return v.hashes[role] != ""
}
