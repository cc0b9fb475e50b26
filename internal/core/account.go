package core

import "time"

// AccountStatus is the connection state of an account. Transitions happen
// only through explicit registry operations.
type AccountStatus int

const (
	StatusConnected AccountStatus = iota
	// User disconnected the account; history is preserved
	StatusDisconnected
	// A refresh failed; unusable for commit until refreshed again
	StatusError
)

func (s AccountStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Account is one authenticated connection between a user and one provider.
// Accounts are never deleted; disconnection only changes the status.
type Account struct {
	ID          string        `json:"id"`
	User        string        `json:"user"`
	Provider    ProviderKind  `json:"provider"`
	Credentials Credentials   `json:"credentials"`
	Status      AccountStatus `json:"status"`
	LastSync    time.Time     `json:"last_sync"`
}

// Usable reports whether the account can take part in a commit.
func (a *Account) Usable() bool {
	return a.Status == StatusConnected
}

// AccountInfo is the read-only projection returned by status queries. It
// deliberately omits the credential bundle.
type AccountInfo struct {
	ID       string
	Provider ProviderKind
	Status   AccountStatus
	LastSync time.Time
}
