package realtime

import (
	"github.com/dalemusser/taskhub/internal/domain/models"
)

// The constructors below fill the routing fields of an event for each
// document type. Services use them when publishing confirmed writes and
// the change-stream decoders use them for committed changes, so both
// sources route identically.

func WorkspaceEvent(t ChangeType, ws models.Workspace) Event {
	return Event{Collection: Workspaces, Type: t, ID: ws.ID.Hex(), WorkspaceID: ws.ID, Doc: ws}
}

func MembershipEvent(t ChangeType, m models.Membership) Event {
	return Event{Collection: Memberships, Type: t, ID: m.ID.Hex(), WorkspaceID: m.WorkspaceID, Doc: m}
}

// InvitationEvent routes by invitee email; workspace invitations are also
// routed to the workspace so its managers see them.
func InvitationEvent(t ChangeType, inv models.Invitation) Event {
	e := Event{Collection: Invitations, Type: t, ID: inv.ID.Hex(), InviteeEmail: inv.InvitedEmail, Doc: inv}
	if inv.WorkspaceID != nil {
		e.WorkspaceID = *inv.WorkspaceID
	}
	return e
}

func TaskEvent(t ChangeType, task models.Task) Event {
	return Event{Collection: Tasks, Type: t, ID: task.ID.Hex(), WorkspaceID: task.WorkspaceID, Doc: task}
}

func NoteEvent(t ChangeType, n models.Note) Event {
	return Event{Collection: Notes, Type: t, ID: n.ID.Hex(), WorkspaceID: n.WorkspaceID, Doc: n}
}

func CategoryEvent(t ChangeType, c models.Category) Event {
	return Event{Collection: Categories, Type: t, ID: c.ID.Hex(), WorkspaceID: c.WorkspaceID, Doc: c}
}

// Decoders returns the change-stream decoder of every routed collection.
func Decoders() map[string]Decoder {
	return map[string]Decoder{
		Workspaces:  DecodeAs(func(d models.Workspace, e *Event) { *e = WorkspaceEvent(e.Type, d) }),
		Memberships: DecodeAs(func(d models.Membership, e *Event) { *e = MembershipEvent(e.Type, d) }),
		Invitations: DecodeAs(func(d models.Invitation, e *Event) { *e = InvitationEvent(e.Type, d) }),
		Tasks:       DecodeAs(func(d models.Task, e *Event) { *e = TaskEvent(e.Type, d) }),
		Notes:       DecodeAs(func(d models.Note, e *Event) { *e = NoteEvent(e.Type, d) }),
		Categories:  DecodeAs(func(d models.Category, e *Event) { *e = CategoryEvent(e.Type, d) }),
	}
}
