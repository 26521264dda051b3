package group

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-notices/core"
)

type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MemberIDs []string  `json:"member_ids"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Summary is the public view of a Group shown in recipient pickers.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

func (g Group) Summary() Summary {
	return Summary{ID: g.ID, Name: g.Name, MemberCount: len(g.MemberIDs)}
}

// MemberSet is a set of user IDs.
type MemberSet map[string]struct{}

func NewMemberSet(ids ...string) MemberSet {
	set := make(MemberSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

func (s MemberSet) Add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

func (s MemberSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Slice returns the members sorted.
func (s MemberSet) Slice() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name      string   `json:"name" validate:"required,notblank,max=100"`
	MemberIDs []string `json:"member_ids" validate:"omitempty,dive,uuid"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.MemberIDs = core.UniqueStrings(ng.MemberIDs)
	return validate.Struct(ng)
}

// UpdateGroup renames a Group and/or replaces its whole membership.
// A nil MemberIDs leaves the membership untouched; an empty one clears it.
type UpdateGroup struct {
	Name      string   `json:"name" validate:"omitempty,notblank,max=100"`
	MemberIDs []string `json:"member_ids" validate:"omitempty,dive,uuid"`
}

func (ug *UpdateGroup) Validate(orig Group, validate *validator.Validate) error {
	if name := core.CleanString(ug.Name); name != "" {
		ug.Name = name
	} else {
		ug.Name = orig.Name
	}
	if ug.MemberIDs != nil {
		ug.MemberIDs = core.UniqueStrings(ug.MemberIDs)
	}
	return validate.Struct(ug)
}
