//go:build !linux && !darwin

package handler

// getDiskStats is not implemented off linux and darwin. The bot runs in Linux containers.
func getDiskStats(path string) (total, free int64) {
	return 0, 0
}
