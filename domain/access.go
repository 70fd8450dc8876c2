package domain

// Verdict is a user's resolved access level on a note. Derived on demand,
// never stored.
type Verdict struct {
	role       role
	permission Permission
}

type role int

const (
	roleNone role = iota
	roleCollaborator
	roleOwner
)

var (
	verdictNoAccess = Verdict{role: roleNone}
	verdictOwner    = Verdict{role: roleOwner}
)

// Owner reports whether the actor owns the note.
func (v Verdict) Owner() bool { return v.role == roleOwner }

// NoAccess reports whether the actor has no access at all.
func (v Verdict) NoAccess() bool { return v.role == roleNone }

// Permission returns the collaborator permission and whether the actor is a
// collaborator.
func (v Verdict) Permission() (Permission, bool) {
	return v.permission, v.role == roleCollaborator
}

// CanRead is true for the owner and any collaborator.
func (v Verdict) CanRead() bool { return v.role != roleNone }

// CanWrite is true for the owner and write collaborators only.
func (v Verdict) CanWrite() bool {
	return v.role == roleOwner || (v.role == roleCollaborator && v.permission == PermissionWrite)
}

// Evaluate resolves actorID's access to note. Pure and total: every
// (note, actor) pair yields exactly one verdict.
func Evaluate(note *Note, actorID UserID) Verdict {
	if note.OwnerID == actorID {
		return verdictOwner
	}
	for _, c := range note.Collaborators {
		if c.UserID == actorID {
			return Verdict{role: roleCollaborator, permission: c.Permission}
		}
	}
	return verdictNoAccess
}
