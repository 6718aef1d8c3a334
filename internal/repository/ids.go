package repository

import "github.com/google/uuid"

// validID reports whether id can address a UUID primary key. Malformed ids are
// treated as missing rows instead of reaching Postgres as a cast error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
