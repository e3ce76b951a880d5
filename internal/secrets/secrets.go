package secrets

import (
	"errors"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups the engine's secrets in the OS keychain.
	KeyringService = "matscout"

	AccountSearchAPI = "search-api-key"
	AccountLLMAPI    = "llm-api-key"
	AccountEmailAPI  = "email-api-key"
)

// env variable per keyring account; env always wins so containers and CI
// never need a keychain.
var envFor = map[string]string{
	AccountSearchAPI: "MATSCOUT_SEARCH_API_KEY",
	AccountLLMAPI:    "MATSCOUT_LLM_API_KEY",
	AccountEmailAPI:  "MATSCOUT_EMAIL_API_KEY",
}

// ByName maps the short names used on the CLI and the API to keyring accounts.
var ByName = map[string]string{
	"search": AccountSearchAPI,
	"llm":    AccountLLMAPI,
	"email":  AccountEmailAPI,
}

// Get resolves a secret: environment first, OS keyring second.
func Get(account string) (string, error) {
	if env := envFor[account]; env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v, nil
		}
	}

	pw, err := keyring.Get(KeyringService, account)
	if err == nil && strings.TrimSpace(pw) != "" {
		return pw, nil
	}

	return "", errors.New("secret " + account + " not found (set env var or keychain entry)")
}

// GetOptional is Get for secrets whose absence just disables a feature.
func GetOptional(account string) string {
	v, err := Get(account)
	if err != nil {
		return ""
	}
	return v
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
