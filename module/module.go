// Package module describes recon modules and keeps them on disk.
//
// A Lua module starts with a comment header:
//
//	-- Description: Collect subdomains from crt.sh
//	-- Version: 0.2.0
//	-- Source: domains
//	-- License: MIT
//
// Modules live at <root>/<author>/<name>.lua, or .wasm for compiled guests.
package module

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Kind string

const (
	KindLua  Kind = "lua"
	KindWASM Kind = "wasm"
)

var (
	ErrInvalidName     = errors.New("invalid module name")
	ErrMissingMetadata = errors.New("missing module metadata")
	ErrNotFound        = errors.New("module not found")
)

var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

type Metadata struct {
	Description string
	Version     string
	Source      string
	License     string
}

type Module struct {
	Author string
	Name   string
	Kind   Kind
	Path   string
	Code   []byte
	Metadata
}

// Canonical returns "author/name".
func (m Module) Canonical() string {
	return m.Author + "/" + m.Name
}

// ParseMetadata reads the leading comment header of a Lua module. Parsing
// stops at the first line that is not a comment.
func ParseMetadata(code string) (Metadata, error) {
	var md Metadata
	sc := bufio.NewScanner(strings.NewReader(code))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "--")), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "description":
			md.Description = value
		case "version":
			md.Version = value
		case "source":
			md.Source = value
		case "license":
			md.License = value
		}
	}
	if err := sc.Err(); err != nil {
		return Metadata{}, err
	}

	switch {
	case md.Description == "":
		return Metadata{}, fmt.Errorf("%w: Description", ErrMissingMetadata)
	case md.Version == "":
		return Metadata{}, fmt.Errorf("%w: Version", ErrMissingMetadata)
	}
	return md, nil
}

// ParseName splits "author/name[@version]".
func ParseName(s string) (author, name, version string, err error) {
	ref, version, _ := strings.Cut(s, "@")
	author, name, ok := strings.Cut(ref, "/")
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q: expected author/name", ErrInvalidName, s)
	}
	if err := ValidateName(author, name); err != nil {
		return "", "", "", err
	}
	return author, name, version, nil
}

func ValidateName(author, name string) error {
	if !namePattern.MatchString(author) {
		return fmt.Errorf("%w: author %q", ErrInvalidName, author)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: name %q", ErrInvalidName, name)
	}
	return nil
}
