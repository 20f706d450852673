package types

// CascadeReport summarizes the rows removed by a cascading delete.
type CascadeReport struct {
	PrincipalID      string   `json:"principal_id,omitempty"`
	Dependents       int      `json:"dependents"`
	Links            int      `json:"links"`
	Memberships      int      `json:"memberships"`
	Entities         []string `json:"entities"`
	EntityDependents int      `json:"entity_dependents"`
}

// Total returns the number of rows removed, including the root.
func (r *CascadeReport) Total() int {
	n := r.Dependents + r.Links + r.Memberships + len(r.Entities) + r.EntityDependents
	if r.PrincipalID != "" {
		n++
	}
	return n
}
