//go:build property
// +build property

package config

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestServerConfigProperties tests server configuration properties
func TestServerConfigProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("port validation", prop.ForAll(
		func(port int) bool {
			err := validateServerConfig(&ServerConfig{Port: port, Host: "localhost"})

			if port >= 0 && port <= 65535 {
				return err == nil
			}
			return err != nil
		},
		gen.IntRange(-1000, 70000),
	))

	properties.Property("hosts with shell metacharacters are rejected", prop.ForAll(
		func(prefix, meta, suffix string) bool {
			host := prefix + meta + suffix
			return validateServerConfig(&ServerConfig{Port: 8080, Host: host}) != nil
		},
		gen.AlphaString(),
		gen.OneConstOf(";", "|", "&", "`", "$", "(", ")", "<", ">"),
		gen.AlphaString(),
	))

	properties.Property("generated hostnames are accepted", prop.ForAll(
		func(labels []string) bool {
			host := strings.Join(labels, ".")
			return validateHostname(host) == nil
		},
		gen.SliceOfN(3, gen.RegexMatch(`^[a-z][a-z0-9]{0,10}$`)).
			SuchThat(func(ls []string) bool { return len(ls) > 0 }),
	))

	properties.TestingRun(t)
}

// TestPathProperties tests backup path validation
func TestPathProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("traversal is always rejected", prop.ForAll(
		func(head, tail string) bool {
			return validatePath(head+"/../"+tail) != nil
		},
		gen.RegexMatch(`^\.\.(/[a-z]{1,5}){0,2}$`),
		gen.RegexMatch(`^[a-z]{1,8}$`),
	))

	properties.Property("validation is deterministic", prop.ForAll(
		func(path string) bool {
			a, b := validatePath(path), validatePath(path)
			return (a == nil) == (b == nil)
		},
		gen.OneConstOf(".storefront/backups", "../backups", "/var/lib/storefront", "a;b", ""),
	))

	properties.TestingRun(t)
}
