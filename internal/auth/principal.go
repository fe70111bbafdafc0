package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned by a PrincipalResolver that refuses the
// request's identity material.
var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the resolved identity of a subscriber. It is immutable for
// the lifetime of the request that produced it; subscribe streams hold it
// for the lifetime of the connection without refreshing.
type Principal struct {
	UserID      string
	Workspaces  map[string]struct{}
	Permissions map[string]struct{}
}

// InWorkspace reports whether the principal belongs to the workspace.
func (p Principal) InWorkspace(workspace string) bool {
	_, ok := p.Workspaces[workspace]
	return ok
}

// HasPermission reports whether the principal carries the permission.
func (p Principal) HasPermission(perm string) bool {
	_, ok := p.Permissions[perm]
	return ok
}

// WorkspaceList returns the workspace set as a slice (unordered).
func (p Principal) WorkspaceList() []string {
	out := make([]string, 0, len(p.Workspaces))
	for ws := range p.Workspaces {
		out = append(out, ws)
	}
	return out
}

// PrincipalResolver turns the headers of an incoming HTTP request into a
// Principal. Implementations live at the edge; the broker only consumes
// this interface.
type PrincipalResolver interface {
	Resolve(r *http.Request) (Principal, error)
}

// HeaderResolver is the reference resolver: it trusts an X-User-Id header
// (set by an authenticating proxy) and looks workspace membership up in a
// static map seeded from configuration.
//
// A user absent from the map still authenticates; they simply hold no
// workspaces and will stream nothing but heartbeats.
type HeaderResolver struct {
	// UserWorkspaces maps user id to the workspace ids they belong to.
	UserWorkspaces map[string][]string
}

// UserIDHeader carries the proxy-authenticated user id.
const UserIDHeader = "X-User-Id"

// Resolve implements PrincipalResolver.
func (h *HeaderResolver) Resolve(r *http.Request) (Principal, error) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		return Principal{}, ErrUnauthenticated
	}

	workspaces := make(map[string]struct{})
	for _, ws := range h.UserWorkspaces[userID] {
		if ws != "" {
			workspaces[ws] = struct{}{}
		}
	}

	return Principal{
		UserID:      userID,
		Workspaces:  workspaces,
		Permissions: map[string]struct{}{"logs:read": {}},
	}, nil
}
