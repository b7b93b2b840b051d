package identity

// RoleCode is an opaque, globally unique authorization label.
type RoleCode string

const (
	RoleSuperAdmin RoleCode = "SUPER_ADMIN"
	RoleAdmin      RoleCode = "ADMIN"
	RoleManager    RoleCode = "MANAGER"
	RoleEmployee   RoleCode = "EMPLOYEE"
	RoleClient     RoleCode = "CLIENT"
)

// roleLevels maps each known role to its privilege level. Account-kind
// principals are authorized by comparing levels: the principal's highest
// level must reach the minimum level among the route's required roles.
// Codes not present here grant nothing and require nothing.
var roleLevels = map[RoleCode]int{
	RoleSuperAdmin: 100,
	RoleAdmin:      80,
	RoleManager:    60,
	RoleEmployee:   40,
	RoleClient:     10,
}

// Level returns the privilege level of the code, or 0 for unknown codes.
func (c RoleCode) Level() int {
	return roleLevels[c]
}

// Authorize decides whether the principal may proceed on a route declaring
// the given requirement. A nil error means allowed.
//
// Rules, in order:
//   - an empty requirement is public: always allowed;
//   - client-kind principals pass only when CLIENT is among the required
//     roles, regardless of any other role string they carry;
//   - account-kind principals pass when the highest level among their roles
//     reaches the minimum level among the required roles.
//
// Unknown role codes are ignored on both sides; a requirement that reduces
// to no known roles denies everyone (fail closed).
func Authorize(p Principal, required []RoleCode) error {
	if len(required) == 0 {
		return nil
	}

	if p.Kind == KindClient {
		for _, code := range required {
			if code == RoleClient {
				return nil
			}
		}
		return ErrForbidden
	}

	if p.Kind != KindAccount {
		return ErrForbidden
	}

	needed := 0
	known := false
	for _, code := range required {
		level, ok := roleLevels[code]
		if !ok {
			continue
		}
		if !known || level < needed {
			needed = level
			known = true
		}
	}
	if !known {
		return ErrForbidden
	}

	held := 0
	for _, code := range p.Roles {
		if level := roleLevels[code]; level > held {
			held = level
		}
	}
	if held >= needed {
		return nil
	}
	return ErrForbidden
}
