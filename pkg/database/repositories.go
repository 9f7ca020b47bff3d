// Copyright 2025 Certen Protocol
//
// Repositories - single point of access to the archive repositories

package database

// Repositories holds all repository instances.
type Repositories struct {
	ClosedCeremonies *ClosedCeremonyRepository
}

// NewRepositories creates all repositories with the given client.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		ClosedCeremonies: NewClosedCeremonyRepository(client),
	}
}
