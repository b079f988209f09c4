package jwt

import "fmt"

// Kind discriminates the two bearer credentials issued by the [Manager].
//
// Kind is a closed set. Consumers must switch over it exhaustively and treat
// any value other than [KindAccess] and [KindRefresh] as invalid.
type Kind uint8

const (
	kindUnknown Kind = iota
	// KindAccess marks a short-lived credential that authorizes individual requests.
	KindAccess
	// KindRefresh marks a long-lived credential used only to obtain new access tokens.
	KindRefresh
)

const (
	claimAccess  = "access"
	claimRefresh = "refresh"
)

// String returns the wire value carried in the "typ" claim.
func (k Kind) String() string {
	switch k {
	case KindAccess:
		return claimAccess
	case KindRefresh:
		return claimRefresh
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the issued kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh:
		return true
	default:
		return false
	}
}

func parseKind(v string) (Kind, error) {
	switch v {
	case claimAccess:
		return KindAccess, nil
	case claimRefresh:
		return KindRefresh, nil
	default:
		return kindUnknown, ErrUnknownKind
	}
}
