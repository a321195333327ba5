package wiring_test

import (
	"testing"

	"github.com/grindlemire/graft"
)

// TestGraftDependencies checks that every node declaring a dependency uses
// it, and every used dependency is declared.
func TestGraftDependencies(t *testing.T) {
	// AssertDepsValid infers the dependency ID from the package of the type
	// passed to Dep[T]. Nodes here resolve ports.Logger, ports.Tracer and
	// ports.LockfileStore, all from the shared ports package, which the
	// analysis reports as a single undeclared "ports" dependency.
	t.Skip("graft static analysis cannot distinguish nodes exposing types from the shared ports package")
	graft.AssertDepsValid(t, "../../internal")
}
