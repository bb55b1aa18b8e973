package importer

import "errors"

// Import failures are classified into a small taxonomy. All are fatal for the
// import being processed; there is no partial-import mode. Callers match with
// errors.Is.
var (
	// ErrUnsupportedType marks an element-type code or type descriptor the
	// type bridge cannot represent.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUnsupportedAttribute marks an attribute kind with no defined
	// mapping to an IR attribute.
	ErrUnsupportedAttribute = errors.New("unsupported attribute")

	// ErrNonTopological marks a node or graph output referencing a value
	// that was never produced. The format guarantees topological order, so
	// this signals a malformed producer.
	ErrNonTopological = errors.New("non-topological graph")

	// ErrSpecializationFailure marks a schema or function-template lookup
	// that returned nothing for a version claimed available.
	ErrSpecializationFailure = errors.New("operator function specialization failed")

	// ErrTypeConstruction marks a synthesized type or attribute the target
	// IR rejected.
	ErrTypeConstruction = errors.New("type construction rejected")

	// ErrReconciliation marks a graph whose declared inputs overlap its
	// initial values under the strict configuration.
	ErrReconciliation = errors.New("input/initializer reconciliation failed")
)
