package plugin

import "regexp"

// ID identifies a plugin within a collection.
// IDs are lowercase, start with a letter and may contain digits, dots and
// hyphens (e.g. "undo", "clipboard.paste").
type ID string

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9.-]*[a-z0-9]$|^[a-z]$`)

// Valid returns true if id is a well-formed plugin identifier.
func (id ID) Valid() bool {
	return idPattern.MatchString(string(id))
}

// String returns the identifier as a string.
func (id ID) String() string {
	return string(id)
}
