package policy

import (
	"fmt"
	"strings"
)

// NormalizeError reports a policy field whose value cannot be repaired by
// Normalize. Allowed lists the accepted values when the field is an enum.
type NormalizeError struct {
	Field   string
	Value   string
	Allowed []string
}

func (e *NormalizeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("tableadmin: invalid call policy: %s=%q", e.Field, e.Value)
	if len(e.Allowed) > 0 {
		msg += " (want one of " + strings.Join(e.Allowed, ", ") + ")"
	}
	return msg
}
