package repository

import "CoinPull/internal/domain/models"

// IsValidMode returns true if m is a supported acquisition mode.
func IsValidMode(m models.Mode) bool {
	switch m {
	case models.ModeLive, models.ModeDemo:
		return true
	default:
		return false
	}
}

// DefaultMode returns the default acquisition mode.
func DefaultMode() models.Mode { return models.ModeLive }
