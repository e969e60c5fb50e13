package model

import (
	"errors"
	"testing"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/permission"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"", StatusToDo, false},
		{"To Do", StatusToDo, false},
		{"In Progress", StatusInProgress, false},
		{"Done", StatusDone, false},
		{"done", "", true},
		{"Blocked", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				if !errors.Is(err, apperror.ErrValidation) {
					t.Fatalf("ParseStatus(%q) error = %v, want ErrValidation", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseProjectType(t *testing.T) {
	if got, _ := ParseProjectType(""); got != ProjectSoftware {
		t.Errorf("ParseProjectType(\"\") = %q, want software", got)
	}
	if got, _ := ParseProjectType("Service"); got != ProjectService {
		t.Errorf("ParseProjectType(\"Service\") = %q, want service", got)
	}
	if _, err := ParseProjectType("hardware"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("ParseProjectType(\"hardware\") error = %v, want ErrValidation", err)
	}
}

// The explicit member row decides the role, even for the owner.
func TestProject_RoleOf(t *testing.T) {
	p := &Project{
		Owner: "owner@x.com",
		Members: []Member{
			{Email: "owner@x.com", Role: permission.Viewer},
			{Email: "Dev@X.com", Role: permission.Member},
		},
	}

	if role, ok := p.RoleOf("owner@x.com"); !ok || role != permission.Viewer {
		t.Errorf("RoleOf(owner) = %q, %v; want Viewer, true", role, ok)
	}
	if role, ok := p.RoleOf("dev@x.com"); !ok || role != permission.Member {
		t.Errorf("RoleOf(dev) = %q, %v; want Member, true", role, ok)
	}
	if _, ok := p.RoleOf("stranger@x.com"); ok {
		t.Error("RoleOf(stranger) reported a role")
	}
}
