package profile

import "errors"

var ErrNotFound = errors.New("profile not found")

// Profile is the signup record kept for session continuity.
type Profile struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	WalletAddress string `json:"walletAddress"`
}
