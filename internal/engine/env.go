package engine

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// getEnv/getEnvInt are default-valued lookups so every credential field
// degrades gracefully instead of panicking when a .env key is absent.
func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// LoadDotEnv loads a .env file (if present) into the process environment
// without overriding variables the shell already set. Credentials here are
// plain single-line secrets (private keys, API key indices), so there's no
// PEM-multiline concern to special-case around.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	_ = godotenv.Load(paths...) // missing .env is not an error; env-only deploys are valid
}

// VenueCredentials holds the operator-supplied secrets for one venue.
// Missing values are tolerated here; an operation that actually needs a
// credential fails at first use.
type VenueCredentials struct {
	BaseURL      string
	WebsocketURL string
	PrivateKey   string
	AccountIndex int
	APIKeyIndex  int
}

// LoadVenueACredentials reads Venue-A's credentials from the environment.
func LoadVenueACredentials() VenueCredentials {
	return VenueCredentials{
		BaseURL:      getEnv("VENUE_A_BASE_URL", "https://venue-a.example"),
		WebsocketURL: getEnv("VENUE_A_WS_URL", "wss://venue-a.example/stream"),
		PrivateKey:   getEnv("VENUE_A_PRIVATE_KEY", ""),
		AccountIndex: getEnvInt("VENUE_A_ACCOUNT_INDEX", 0),
		APIKeyIndex:  getEnvInt("VENUE_A_API_KEY_INDEX", 0),
	}
}

// LoadVenueLCredentials reads Venue-L's credentials from the environment.
func LoadVenueLCredentials() VenueCredentials {
	return VenueCredentials{
		BaseURL:      getEnv("VENUE_L_BASE_URL", "https://venue-l.example"),
		WebsocketURL: getEnv("VENUE_L_WS_URL", "wss://venue-l.example/stream"),
		PrivateKey:   getEnv("VENUE_L_PRIVATE_KEY", ""),
		AccountIndex: getEnvInt("VENUE_L_ACCOUNT_INDEX", 0),
		APIKeyIndex:  getEnvInt("VENUE_L_API_KEY_INDEX", 0),
	}
}

// Missing reports which credential fields are empty, for a single startup
// warning rather than a hard failure.
func (c VenueCredentials) Missing() []string {
	var missing []string
	if c.PrivateKey == "" {
		missing = append(missing, "private key")
	}
	return missing
}
