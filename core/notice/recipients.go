package notice

import (
	"context"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
)

// MemberResolver returns the members of a group, or an empty set when the group does not exist.
type MemberResolver interface {
	ResolveMembers(ctx context.Context, groupID string) (group.MemberSet, error)
}

// BuildRecipients flattens direct user refs and group refs into a deduplicated set of user IDs.
func BuildRecipients(ctx context.Context, resolver MemberResolver, content string, refs []RecipientRef) (RecipientSet, error) {
	var flds []core.FieldError
	if core.CleanString(content) == "" {
		flds = append(flds, core.FieldError{Field: "content", Error: "this field cannot be blank"})
	}
	if len(refs) == 0 {
		flds = append(flds, core.FieldError{Field: "recipients", Error: "this field is required"})
	}
	if len(flds) > 0 {
		return nil, core.NewValidationError(nil, flds...)
	}

	set := make(RecipientSet)
	for _, ref := range refs {
		if ref.Kind != RecipientGroup {
			continue
		}
		members, err := resolver.ResolveMembers(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		for id := range members {
			set.Add(id)
		}
	}
	for _, ref := range refs {
		if ref.Kind != RecipientGroup {
			set.Add(ref.ID)
		}
	}

	if len(set) == 0 {
		return nil, noValidRecipientsErr()
	}
	return set, nil
}

func noValidRecipientsErr() error {
	return core.NewValidationError(ErrNoValidRecipients, core.FieldError{
		Field: "recipients",
		Error: ErrNoValidRecipients.Error(),
	})
}
