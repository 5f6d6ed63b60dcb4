package model

// ChangeAction names the kind of committed species mutation.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
	ChangeDeleted ChangeAction = "deleted"
)

// Change describes one committed mutation. It carries no record payload:
// receivers re-fetch the list instead of patching local copies.
type Change struct {
	Action    ChangeAction `json:"action"`
	SpeciesID string       `json:"speciesId"`
	Actor     string       `json:"actor"` // user ID that made the change
}
