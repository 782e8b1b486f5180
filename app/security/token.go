package security

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"time"

	"github.com/velorum-store/ms-go-checkout/app/entity"
)

const tokenEntropyBytes = 32

// Sentinel fingerprint values used when the inbound request carries no
// usable client information. Absence is not an error at issuance time.
const (
	FallbackIP        = "127.0.0.1"
	FallbackUserAgent = "unknown"
)

var browserFamilies = []string{"Chrome", "Firefox", "Safari", "Edge", "Opera"}

type Fingerprint struct {
	IP        string
	UserAgent string
}

// GenerateToken returns a 43-character URL-safe token with 256 bits of
// entropy. Collisions are treated as impossible.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewCheckoutToken binds a freshly generated token value to the order and
// the issuing client's fingerprint.
func NewCheckoutToken(token string, orderID uint64, fp Fingerprint, now time.Time) *entity.CheckoutToken {
	ip := strings.TrimSpace(fp.IP)
	if ip == "" {
		ip = FallbackIP
	}
	ua := strings.TrimSpace(fp.UserAgent)
	if ua == "" {
		ua = FallbackUserAgent
	}

	return &entity.CheckoutToken{
		Token:      token,
		OrderID:    orderID,
		OriginIP:   ip,
		UserAgent:  ua,
		UsageCount: 0,
		CreatedAt:  now,
	}
}

// IPSimilar reports whether two IPv4 addresses share their first three
// octets. Dynamic residential networks commonly rotate only the last one.
func IPSimilar(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}

	octetsA := strings.Split(a, ".")
	octetsB := strings.Split(b, ".")
	if len(octetsA) < 3 || len(octetsB) < 3 {
		return false
	}

	for i := 0; i < 3; i++ {
		if octetsA[i] != octetsB[i] {
			return false
		}
	}
	return true
}

// UserAgentCompatible reports whether both user agents mention the same
// major browser family.
func UserAgentCompatible(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}

	for _, browser := range browserFamilies {
		if strings.Contains(a, browser) && strings.Contains(b, browser) {
			return true
		}
	}
	return false
}

// FingerprintsCompatible is the soft continuity check across the payment
// redirect: either a similar IP or a compatible user agent is enough.
// Callers decide policy; token validation never hard-fails on this.
func FingerprintsCompatible(stored, presented Fingerprint) bool {
	return IPSimilar(stored.IP, presented.IP) ||
		UserAgentCompatible(stored.UserAgent, presented.UserAgent)
}
