package geom

import "fmt"

// ConfigurationError reports invalid construction parameters anywhere in the
// packing pipeline (domains, packer settings, lattice specs). It is returned
// immediately and never retried.
type ConfigurationError struct {
	Context string // which component rejected the parameters
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Context, e.Reason)
}
