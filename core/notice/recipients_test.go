package notice_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
	"github.com/trezcool/masomo-notices/core/notice"
)

type resolverMock map[string][]string

func (r resolverMock) ResolveMembers(_ context.Context, groupID string) (group.MemberSet, error) {
	if groupID == "broken" {
		return nil, errBroken
	}
	return group.NewMemberSet(r[groupID]...), nil
}

var errBroken = errors.New("store is down")

func TestParseRecipientRef(t *testing.T) {
	tests := []struct {
		raw  string
		want notice.RecipientRef
	}{
		{raw: "u1", want: notice.UserRef("u1")},
		{raw: " u1 ", want: notice.UserRef("u1")},
		{raw: "group:g1", want: notice.GroupRef("g1")},
		{raw: "group: g1", want: notice.GroupRef("g1")},
		{raw: "groups:g1", want: notice.UserRef("groups:g1")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := notice.ParseRecipientRef(tt.raw)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "group:g1", notice.GroupRef("g1").String())
	assert.Equal(t, "u1", notice.UserRef("u1").String())
}

func TestBuildRecipients(t *testing.T) {
	resolver := resolverMock{
		"g1":     {"u2", "u3"},
		"g2":     {"u1", "u3"},
		"gEmpty": {},
	}

	tests := []struct {
		name    string
		content string
		refs    []notice.RecipientRef
		want    []string
		wantErr error
	}{
		{
			name:    "direct and group",
			content: "Picture day",
			refs:    []notice.RecipientRef{notice.UserRef("u1"), notice.GroupRef("g1")},
			want:    []string{"u1", "u2", "u3"},
		},
		{
			name:    "user reachable twice",
			content: "Picture day",
			refs:    []notice.RecipientRef{notice.UserRef("u1"), notice.GroupRef("g2"), notice.UserRef("u1")},
			want:    []string{"u1", "u3"},
		},
		{
			name:    "overlapping groups",
			content: "Picture day",
			refs:    []notice.RecipientRef{notice.GroupRef("g1"), notice.GroupRef("g2")},
			want:    []string{"u1", "u2", "u3"},
		},
		{
			name:    "unknown group adds nobody",
			content: "Picture day",
			refs:    []notice.RecipientRef{notice.GroupRef("nope"), notice.UserRef("u9")},
			want:    []string{"u9"},
		},
		{
			name:    "empty group only",
			content: "Picture day",
			refs:    []notice.RecipientRef{notice.GroupRef("gEmpty")},
			wantErr: notice.ErrNoValidRecipients,
		},
		{
			name:    "blank content",
			content: "  ",
			refs:    []notice.RecipientRef{notice.UserRef("u1")},
			wantErr: &core.ValidationError{},
		},
		{
			name:    "no recipients",
			content: "Picture day",
			wantErr: &core.ValidationError{},
		},
		{
			name:    "resolver failure",
			content: "Picture day",
			refs:    []notice.RecipientRef{notice.GroupRef("broken")},
			wantErr: errBroken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := assert.New(t)
			got, err := notice.BuildRecipients(context.Background(), resolver, tt.content, tt.refs)

			switch want := tt.wantErr.(type) {
			case nil:
				if is.NoError(err) {
					is.Equal(tt.want, got.Slice())
				}
			case *core.ValidationError:
				is.IsType(want, errors.Cause(err))
			default:
				is.True(errors.Is(err, want), "err = %v; want %v", err, want)
			}
		})
	}
}

func TestBuildRecipients_NoValidRecipientsIsValidationError(t *testing.T) {
	_, err := notice.BuildRecipients(context.Background(), resolverMock{}, "hi", []notice.RecipientRef{notice.GroupRef("g")})

	var vErr *core.ValidationError
	if assert.True(t, errors.As(err, &vErr)) {
		assert.Equal(t, "recipients", vErr.Fields[0].Field)
	}
	assert.True(t, errors.Is(err, notice.ErrNoValidRecipients))
}
