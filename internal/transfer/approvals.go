package transfer

// ApprovalSet is the ordered, signer-unique set of approvals collected for
// one transfer. The zero value is empty and ready to use.
//
// Thread Safety: not safe for concurrent use; the engine only touches a set
// while holding the asset lock.
type ApprovalSet struct {
	list  []Approval
	index map[string]int
}

// NewApprovalSet builds a set from persisted approvals, keeping the first
// approval of any repeated signer.
func NewApprovalSet(approvals []Approval) *ApprovalSet {
	s := &ApprovalSet{}
	for _, a := range approvals {
		s.Add(a)
	}
	return s
}

// Add appends a if its signer has not approved yet. It reports whether the
// approval was added.
func (s *ApprovalSet) Add(a Approval) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[a.Signer]; ok {
		return false
	}
	s.index[a.Signer] = len(s.list)
	s.list = append(s.list, a)
	return true
}

// Has reports whether signer has approved.
func (s *ApprovalSet) Has(signer string) bool {
	_, ok := s.index[signer]
	return ok
}

// Get returns the approval given by signer.
func (s *ApprovalSet) Get(signer string) (Approval, bool) {
	i, ok := s.index[signer]
	if !ok {
		return Approval{}, false
	}
	return s.list[i], true
}

// HasRole reports whether any approval was given as role.
func (s *ApprovalSet) HasRole(role ApproverRole) bool {
	for _, a := range s.list {
		if a.Role == role {
			return true
		}
	}
	return false
}

// Signers returns the signers in approval order.
func (s *ApprovalSet) Signers() []string {
	out := make([]string, len(s.list))
	for i, a := range s.list {
		out[i] = a.Signer
	}
	return out
}

// Len returns the number of approvals.
func (s *ApprovalSet) Len() int {
	return len(s.list)
}

// List returns a copy of the approvals in order. Never nil.
func (s *ApprovalSet) List() []Approval {
	out := make([]Approval, len(s.list))
	copy(out, s.list)
	return out
}

// QuorumPolicy decides whether a set of approvals allows execution.
type QuorumPolicy func(*ApprovalSet) bool

// Quorum policy names accepted by ParseQuorum.
const (
	QuorumNewOwner    = "new_owner"
	QuorumBothParties = "both"
)

// NewOwnerQuorum executes once the recipient has approved.
func NewOwnerQuorum(s *ApprovalSet) bool {
	return s.HasRole(RoleNewOwner)
}

// BothPartiesQuorum executes once both the current and the new owner approved.
func BothPartiesQuorum(s *ApprovalSet) bool {
	return s.HasRole(RoleNewOwner) && s.HasRole(RoleCurrentOwner)
}

// ParseQuorum maps a configured policy name to a QuorumPolicy. An empty
// name selects NewOwnerQuorum.
func ParseQuorum(name string) (QuorumPolicy, bool) {
	switch name {
	case "", QuorumNewOwner:
		return NewOwnerQuorum, true
	case QuorumBothParties:
		return BothPartiesQuorum, true
	default:
		return nil, false
	}
}
