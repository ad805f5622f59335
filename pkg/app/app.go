// Package app defines the contracts shared by the teller's executable
// entrypoints, so cmd binaries can start components without depending on
// their concrete types.
package app

// Runner is a long-running component started by a cmd binary.
type Runner interface {
	Run() error
}
