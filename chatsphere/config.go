package chatsphere

import (
	"time"

	env "github.com/Netflix/go-env"
)

// Config controls how the engine talks to the server. SelfID and Token
// are explicit here rather than ambient process state: one Session, one
// identity.
type Config struct {
	APIBaseURL string `env:"CHATSPHERE_API_URL"`
	WSBaseURL  string `env:"CHATSPHERE_WS_URL"`
	Token      string `env:"CHATSPHERE_TOKEN"`
	SelfID     string `env:"CHATSPHERE_USER_ID"`
	Username   string `env:"CHATSPHERE_USERNAME"`

	// HistoryLimit bounds the snapshot fetched on room activation.
	HistoryLimit int `env:"CHATSPHERE_HISTORY_LIMIT"`

	// TypingTimeout is both the peer-presence expiry and the local
	// stop_typing inactivity window.
	TypingTimeout time.Duration `env:"CHATSPHERE_TYPING_TIMEOUT"`

	HandshakeTimeout time.Duration `env:"CHATSPHERE_HANDSHAKE_TIMEOUT"`
	WriteTimeout     time.Duration `env:"CHATSPHERE_WRITE_TIMEOUT"`

	// ReadTimeout is zero by default: the inbound stream blocks for as
	// long as the room is quiet.
	ReadTimeout time.Duration `env:"CHATSPHERE_READ_TIMEOUT"`
}

// DefaultConfig returns sensible defaults. Endpoint, token and identity
// still have to be filled in.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:     50,
		TypingTimeout:    2 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// ConfigFromEnv builds a Config from CHATSPHERE_* environment variables
// on top of the defaults.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, WrapError(ErrorInvalidConfig, "environment", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields the engine cannot run without.
func (c Config) Validate() error {
	switch {
	case c.APIBaseURL == "":
		return NewError(ErrorInvalidConfig, "empty API base URL")
	case c.WSBaseURL == "":
		return NewError(ErrorInvalidConfig, "empty WebSocket base URL")
	case c.Token == "":
		return NewError(ErrorInvalidConfig, "empty token")
	case c.SelfID == "":
		return NewError(ErrorInvalidConfig, "empty self user id")
	case c.HistoryLimit <= 0:
		return NewError(ErrorInvalidConfig, "history limit must be positive")
	case c.TypingTimeout <= 0:
		return NewError(ErrorInvalidConfig, "typing timeout must be positive")
	}
	return nil
}
