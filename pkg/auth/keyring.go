package auth

import (
	"github.com/zalando/go-keyring"

	"boorudl/pkg/logger"
)

const keyringService = "boorudl"

// StoreKey puts the API key into the system keyring as well, so it does not
// live only in the cache file. Keyring absence is non-fatal.
func StoreKey(source, username, apiKey string, log logger.Logger) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := keyring.Set(keyringService, source+":"+username, apiKey); err != nil {
		log.WithError(err).Debug("system keyring unavailable, API key kept in cache only")
	}
}

// LookupKey fetches the API key from the system keyring. Returns "" when the
// keyring is unavailable or holds nothing for this account.
func LookupKey(source, username string) string {
	key, err := keyring.Get(keyringService, source+":"+username)
	if err != nil {
		return ""
	}
	return key
}

// ForgetKey removes the API key from the system keyring. A missing entry or
// an unavailable keyring is fine.
func ForgetKey(source, username string, log logger.Logger) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := keyring.Delete(keyringService, source+":"+username); err != nil {
		log.WithError(err).Debug("keyring entry not removed")
	}
}
