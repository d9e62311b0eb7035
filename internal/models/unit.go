package models

import "fmt"

// Unit is a remote association record fetched from the unit listing API.
// Identity is ID; records are never mutated after they are fetched.
type Unit struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Label renders the unit the way the selector shows it: "<id> - <displayName>".
func (u Unit) Label() string {
	return fmt.Sprintf("%s - %s", u.ID, u.DisplayName)
}

// UnitOption is one entry of the selector view derived from the loaded units.
type UnitOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Selection is a snapshot of what the user picked for one batch.
type Selection struct {
	Files []LocalFile
	Unit  *Unit
}
