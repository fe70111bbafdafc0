package channel

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// CHANNEL NAMING (publish path ↔ subscriber index)
// =============================================================================
// Log channels are colon-delimited names binding a producing service to a
// workspace, optionally scoped to a single resource:
//
//   logs:<service>:<workspace>              - all logs a service emits for a workspace
//   logs:<service>:<workspace>:<resource>   - logs for one workflow / function
//
// Components are opaque strings compared byte-exact; names are case-sensitive.
//
// Examples:
//   logs:etl:workspace123                   - workspace-wide ETL logs
//   logs:etl:workspace123:workflow456       - one workflow run
//   logs:function:workspace123:fn789        - one function invocation

// Prefix is the fixed first component of every log channel.
const Prefix = "logs"

// Separator delimits channel components.
const Separator = ":"

// maxComponents bounds the split: prefix, service, workspace, resource.
const maxComponents = 4

// ErrMalformed reports a channel name that does not follow the
// logs:<service>:<workspace>[:<resource>] grammar.
var ErrMalformed = errors.New("malformed channel name")

// Channel is a parsed channel name.
type Channel struct {
	Name      string // full name as received
	Service   string // producing service identifier
	Workspace string // opaque workspace id
	Resource  string // optional sub-scope (workflow or function id), "" if absent
}

// Parse splits a channel name and validates the grammar.
//
// Rules:
//   - at most four colon-delimited components
//   - first component must be the literal "logs"
//   - service and workspace must be non-empty
//   - resource, when present, must be non-empty
func Parse(name string) (Channel, error) {
	parts := strings.SplitN(name, Separator, maxComponents)
	if len(parts) < 3 {
		return Channel{}, fmt.Errorf("%w: %q", ErrMalformed, name)
	}
	if parts[0] != Prefix {
		return Channel{}, fmt.Errorf("%w: %q must start with %q", ErrMalformed, name, Prefix)
	}
	if parts[1] == "" || parts[2] == "" {
		return Channel{}, fmt.Errorf("%w: %q has empty service or workspace", ErrMalformed, name)
	}

	ch := Channel{
		Name:      name,
		Service:   parts[1],
		Workspace: parts[2],
	}
	if len(parts) == maxComponents {
		if parts[3] == "" {
			return Channel{}, fmt.Errorf("%w: %q has empty resource", ErrMalformed, name)
		}
		ch.Resource = parts[3]
	}
	return ch, nil
}

// IsValid reports whether name parses cleanly.
func IsValid(name string) bool {
	_, err := Parse(name)
	return err == nil
}

// Build constructs a channel name from components. Resource may be empty.
func Build(service, workspace, resource string) string {
	if resource == "" {
		return Prefix + Separator + service + Separator + workspace
	}
	return Prefix + Separator + service + Separator + workspace + Separator + resource
}

// Derive determines the publish target channel from a publish request body.
//
// Resource precedence: function_id wins over workflow_id when both are set.
// A function-scoped publish is always addressed under the "function" service
// component, regardless of the declared service.
func Derive(service, workspaceID, workflowID, functionID string) string {
	switch {
	case functionID != "":
		return Build("function", workspaceID, functionID)
	case workflowID != "":
		return Build(service, workspaceID, workflowID)
	default:
		return Build(service, workspaceID, "")
	}
}

// Dedupe returns names with duplicates removed, preserving first-seen order.
func Dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
