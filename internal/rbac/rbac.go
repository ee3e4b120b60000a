// Package rbac maps collaborator statuses to the actions they allow.
package rbac

type Status string
type Action string

const (
	StatusOwner        Status = "owner"
	StatusAdmin        Status = "admin"
	StatusCollaborator Status = "collaborator"
	StatusViewer       Status = "viewer"
)

const (
	ActionView    Action = "view"
	ActionSuggest Action = "suggest"
	ActionEdit    Action = "edit"
	ActionManage  Action = "manage"
	ActionDelete  Action = "delete"
)

func Can(status Status, action Action) bool {
	switch status {
	case StatusOwner:
		return true
	case StatusAdmin:
		return action == ActionView || action == ActionSuggest || action == ActionEdit || action == ActionManage
	case StatusCollaborator:
		return action == ActionView || action == ActionSuggest || action == ActionEdit
	case StatusViewer:
		return action == ActionView
	default:
		return false
	}
}

// CanUseMode reports whether a collaborator may open an entity in the
// given editing mode. View and vote modes never mutate content, so any
// recognized status qualifies.
func CanUseMode(status Status, mode string) bool {
	switch mode {
	case "view", "vote":
		return Can(status, ActionView)
	case "suggest":
		return Can(status, ActionSuggest)
	case "edit":
		return Can(status, ActionEdit)
	default:
		return false
	}
}

func Normalize(status string) Status {
	switch Status(status) {
	case StatusOwner, StatusAdmin, StatusCollaborator, StatusViewer:
		return Status(status)
	default:
		return StatusViewer
	}
}
