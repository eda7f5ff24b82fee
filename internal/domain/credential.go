package domain

import "strings"

// CredentialKind tags how a stored secret is represented.
type CredentialKind int

const (
	CredentialHashed CredentialKind = iota
	CredentialPlaintext
)

// bcryptPrefix marks the modern digest format.
const bcryptPrefix = "$2"

// Credential is the stored password of a user: either a bcrypt digest or a legacy plaintext secret.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// HashedCredential wraps a digest produced by the hash primitive.
func HashedCredential(digest string) Credential {
	return Credential{Kind: CredentialHashed, Value: digest}
}

// ParseCredential classifies a raw stored value.
func ParseCredential(stored string) Credential {
	if strings.HasPrefix(stored, bcryptPrefix) {
		return Credential{Kind: CredentialHashed, Value: stored}
	}
	return Credential{Kind: CredentialPlaintext, Value: stored}
}

// IsLegacy reports whether the credential still holds a plaintext secret.
func (c Credential) IsLegacy() bool {
	return c.Kind == CredentialPlaintext
}

// String hides the value so credentials never leak through fmt or log fields.
func (c Credential) String() string {
	if c.Kind == CredentialPlaintext {
		return "Credential(plaintext)"
	}
	return "Credential(hashed)"
}
