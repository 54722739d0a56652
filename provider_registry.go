package nemochat

// ProviderID represents a unique upstream identifier.
// Using a typed constant prevents typos and provides compile-time safety.
type ProviderID string

// Known provider identifiers
const (
	// ProviderRelay is the HTTP relay endpoint (POST /api/chat)
	ProviderRelay ProviderID = "relay"

	// ProviderLorem is the in-process lorem ipsum generator for development
	ProviderLorem ProviderID = "lorem"
)

// String returns the string representation of the provider ID
func (p ProviderID) String() string {
	return string(p)
}

// IsValid returns true if the provider ID is a known provider
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderRelay, ProviderLorem:
		return true
	default:
		return false
	}
}
