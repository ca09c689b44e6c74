package absence

import (
	"fmt"
	"strings"

	"github.com/warp/leave-ledger/generic"
)

// TypeMapping maps absence types to the leave-type code whose account an
// approved absence is debited from. Types without an entry never touch the
// ledger.
type TypeMapping map[Type]string

// DefaultTypeMapping debits RTT absences from the RTT account and vacations
// from the VAC account.
func DefaultTypeMapping() TypeMapping {
	return TypeMapping{
		TypeRTT:      "RTT",
		TypeVacation: "VAC",
	}
}

// ParseTypeMapping reads "TYPE=CODE,TYPE=CODE". Whitespace is ignored and
// an empty string yields an empty mapping.
func ParseTypeMapping(s string) (TypeMapping, error) {
	m := TypeMapping{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		typ, code, ok := strings.Cut(pair, "=")
		typ, code = strings.TrimSpace(typ), strings.TrimSpace(code)
		if !ok || typ == "" || code == "" {
			return nil, &generic.FieldError{Field: "absence_type_mapping", Reason: fmt.Sprintf("malformed pair %q, want TYPE=CODE", pair)}
		}
		if len(code) > generic.MaxLeaveTypeCodeLen {
			return nil, &generic.FieldError{Field: "absence_type_mapping", Reason: fmt.Sprintf("leave type code %q too long", code)}
		}
		m[Type(strings.ToUpper(typ))] = code
	}
	return m, nil
}

// LeaveTypeFor returns the mapped leave-type code.
func (m TypeMapping) LeaveTypeFor(t Type) (string, bool) {
	code, ok := m[t]
	return code, ok
}
