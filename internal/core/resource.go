// Package core defines the domain model for resource lifecycle tracking:
// handles, resource types, policies-facing enums, violations, and the
// structured error taxonomy shared by the ledger, detectors, and gate.
package core

import (
	"fmt"
	"strings"
)

// ResourceType tags a tracked resource. Built-in types cover the scarce
// handles the runtime actually exhausts; everything else goes through
// Custom, which keeps the namespace closed without blocking extension.
type ResourceType string

const (
	ResourceThread     ResourceType = "thread"
	ResourceFile       ResourceType = "file"
	ResourceSQLiteConn ResourceType = "sqlite_connection"
	ResourceSocket     ResourceType = "socket"

	customPrefix = "custom:"
)

// BuiltinResourceTypes returns the closed set of built-in types.
func BuiltinResourceTypes() []ResourceType {
	return []ResourceType{ResourceThread, ResourceFile, ResourceSQLiteConn, ResourceSocket}
}

// Custom builds a custom resource type from a name.
func Custom(name string) ResourceType {
	return ResourceType(customPrefix + name)
}

// IsCustom reports whether rt is a custom type.
func (rt ResourceType) IsCustom() bool {
	return strings.HasPrefix(string(rt), customPrefix)
}

// CustomName returns the name component of a custom type, or "" for
// built-ins.
func (rt ResourceType) CustomName() string {
	if !rt.IsCustom() {
		return ""
	}
	return strings.TrimPrefix(string(rt), customPrefix)
}

// Valid reports whether rt is a built-in type or a non-empty custom type.
func (rt ResourceType) Valid() bool {
	switch rt {
	case ResourceThread, ResourceFile, ResourceSQLiteConn, ResourceSocket:
		return true
	}
	return rt.IsCustom() && rt.CustomName() != ""
}

func (rt ResourceType) String() string { return string(rt) }

// ParseResourceType parses a textual tag as found in policy files.
// Accepts built-in names (case-insensitive) and "custom:<name>".
func ParseResourceType(s string) (ResourceType, error) {
	rt := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if !rt.Valid() {
		return "", ErrValidation(CodeInvalidResourceType,
			fmt.Sprintf("unknown resource type %q", s))
	}
	return rt, nil
}
