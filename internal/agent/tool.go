package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bureauhq/bureau/internal/provenance"
)

// UserContext identifies the requesting user for one query.
type UserContext struct {
	ID          string
	Department  string
	PortalToken string
}

// Invocation carries the per-request state a tool may need. The provenance
// scope belongs to exactly one request and is never shared across requests.
type Invocation struct {
	Scope *provenance.Scope
	User  UserContext
}

// Tool is one capability the model can request during a query.
// Run returns the observation text handed back to the model. Expected
// failures (nothing found, portal down, missing credentials) are reported as
// observation text, not as errors, so the model can explain them to the user.
type Tool interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv Invocation, args map[string]any) (string, error)
}

// decodeArgs maps loosely typed tool arguments onto a typed struct.
func decodeArgs(args map[string]any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding tool arguments: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding tool arguments: %w", err)
	}
	return nil
}
