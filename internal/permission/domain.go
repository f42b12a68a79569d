// Package permission computes the effective capability set for a request by
// cascading user override, role default and fail-safe deny.
package permission

// Capability identifies one of the orthogonal permission flags.
type Capability string

const (
	CapView    Capability = "view"
	CapCreate  Capability = "create"
	CapEdit    Capability = "edit"
	CapDelete  Capability = "delete"
	CapApprove Capability = "approve"
)

// Flags is the capability set for one (subject, module) pair. The flags are
// independent booleans, not a bitmask.
type Flags struct {
	View    bool `json:"view"`
	Create  bool `json:"create"`
	Edit    bool `json:"edit"`
	Delete  bool `json:"delete"`
	Approve bool `json:"approve"`
}

// Has reports whether the given capability is granted.
func (f Flags) Has(c Capability) bool {
	switch c {
	case CapView:
		return f.View
	case CapCreate:
		return f.Create
	case CapEdit:
		return f.Edit
	case CapDelete:
		return f.Delete
	case CapApprove:
		return f.Approve
	default:
		return false
	}
}
