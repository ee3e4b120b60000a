package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		status Status
		action Action
		allow  bool
	}{
		{name: "viewer view", status: StatusViewer, action: ActionView, allow: true},
		{name: "viewer edit", status: StatusViewer, action: ActionEdit, allow: false},
		{name: "viewer suggest", status: StatusViewer, action: ActionSuggest, allow: false},
		{name: "collaborator edit", status: StatusCollaborator, action: ActionEdit, allow: true},
		{name: "collaborator manage", status: StatusCollaborator, action: ActionManage, allow: false},
		{name: "admin manage", status: StatusAdmin, action: ActionManage, allow: true},
		{name: "admin delete", status: StatusAdmin, action: ActionDelete, allow: false},
		{name: "owner delete", status: StatusOwner, action: ActionDelete, allow: true},
		{name: "unknown status", status: Status("ghost"), action: ActionView, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.status, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.status, tc.action, got, tc.allow)
			}
		})
	}
}

func TestCanUseMode(t *testing.T) {
	cases := []struct {
		name   string
		status Status
		mode   string
		allow  bool
	}{
		{name: "viewer view mode", status: StatusViewer, mode: "view", allow: true},
		{name: "viewer vote mode", status: StatusViewer, mode: "vote", allow: true},
		{name: "viewer suggest mode", status: StatusViewer, mode: "suggest", allow: false},
		{name: "collaborator suggest mode", status: StatusCollaborator, mode: "suggest", allow: true},
		{name: "collaborator edit mode", status: StatusCollaborator, mode: "edit", allow: true},
		{name: "owner unknown mode", status: StatusOwner, mode: "annotate", allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanUseMode(tc.status, tc.mode); got != tc.allow {
				t.Fatalf("CanUseMode(%q, %q) = %v, want %v", tc.status, tc.mode, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("admin"); got != StatusAdmin {
		t.Fatalf("Normalize(admin) = %q", got)
	}
	if got := Normalize("superuser"); got != StatusViewer {
		t.Fatalf("Normalize(superuser) = %q, want viewer", got)
	}
}
