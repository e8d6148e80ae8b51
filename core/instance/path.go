// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package instance

import (
	"strings"
)

const pathSeparator = "/"

// Path identifies an instance inside its application, for example
// "/vm/tomcat/webapp". A root instance's path has a single element.
type Path string

// RootPath returns the path of a root instance with the given name.
func RootPath(name string) Path {
	return Path(pathSeparator + name)
}

// String returns the path as a string.
func (p Path) String() string {
	return string(p)
}

// Child returns the path of the child of p with the given name.
func (p Path) Child(name string) Path {
	return Path(string(p) + pathSeparator + name)
}

// Name returns the last element of the path.
func (p Path) Name() string {
	s := string(p)
	return s[strings.LastIndex(s, pathSeparator)+1:]
}

// Parent returns the path of the parent instance, or the empty path
// for a root instance.
func (p Path) Parent() Path {
	s := string(p)
	i := strings.LastIndex(s, pathSeparator)
	if i <= 0 {
		return ""
	}
	return Path(s[:i])
}

// IsRoot returns true if p names a root instance.
func (p Path) IsRoot() bool {
	return p != "" && p.Parent() == ""
}

// Root returns the path of the root instance p descends from.
func (p Path) Root() Path {
	s := strings.TrimPrefix(string(p), pathSeparator)
	if i := strings.Index(s, pathSeparator); i >= 0 {
		s = s[:i]
	}
	return RootPath(s)
}

// Depth returns the number of elements in the path.
func (p Path) Depth() int {
	if p == "" {
		return 0
	}
	return strings.Count(string(p), pathSeparator)
}

// ValidName returns true if name can be used as an instance name.
func ValidName(name string) bool {
	return name != "" && !strings.Contains(name, pathSeparator) && strings.TrimSpace(name) == name
}
