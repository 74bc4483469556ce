// Package secrets resolves the {{SECRET:NAME}} placeholders an api-kind
// source configuration may carry. Secrets live outside
// the sources table; the store is the only component that ever sees their
// values, and a missing required secret fails the crawl before any network
// call is made.
package secrets

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// placeholderPattern matches every {{SECRET:NAME}} occurrence in a template
// string. Names are uppercase alphanumeric with underscores, the same
// character set as environment variable names.
var placeholderPattern = regexp.MustCompile(`\{\{SECRET:([A-Z0-9_]+)\}\}`)

// Store resolves secret names to values.
type Store interface {
	// Lookup returns the secret's value, or ("", false) when unknown.
	Lookup(name string) (string, bool)
}

// EnvStore reads secrets from the process environment, optionally behind a
// prefix (e.g. prefix "AIDJOBS_SECRET_" maps {{SECRET:GREENHOUSE_TOKEN}} to
// the AIDJOBS_SECRET_GREENHOUSE_TOKEN variable). The prefix keeps source-
// config secrets from colliding with the worker's own configuration.
type EnvStore struct {
	Prefix string
}

func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{Prefix: prefix}
}

func (s *EnvStore) Lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(s.Prefix + name)
	return v, ok
}

// StaticStore is a fixed name->value map, used by tests and by operators who
// mount secrets from a file.
type StaticStore map[string]string

func (s StaticStore) Lookup(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

// Names returns every distinct secret name referenced by the given template
// strings.
func Names(templates ...string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range templates {
		for _, m := range placeholderPattern.FindAllStringSubmatch(t, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}

// Resolve expands every placeholder in template via store. It returns an
// error naming the first secret the store cannot resolve, so a misconfigured
// source fails fast with an actionable message instead of sending a literal
// placeholder to a remote API.
func Resolve(store Store, template string) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(m, "{{SECRET:"), "}}")
		v, ok := store.Lookup(name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("secrets: %q is not configured", missing)
	}
	return out, nil
}

// Check verifies that every secret referenced by templates resolves,
// without exposing any value. Called during source-config validation and
// again by the orchestrator before the first request of an api crawl.
func Check(store Store, templates ...string) error {
	for _, name := range Names(templates...) {
		if _, ok := store.Lookup(name); !ok {
			return fmt.Errorf("secrets: %q is not configured", name)
		}
	}
	return nil
}

// ResolverFunc adapts a Store to the func(string) string shape the API
// fetcher takes. Unknown names resolve to "" (callers are expected to have
// run Check first).
func ResolverFunc(store Store) func(string) string {
	return func(name string) string {
		v, _ := store.Lookup(name)
		return v
	}
}
