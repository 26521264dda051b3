package notice

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-notices/core"
	"github.com/trezcool/masomo-notices/core/group"
	"github.com/trezcool/masomo-notices/core/user"
)

// Delivery is one recipient's copy of a notice.
// IsRead is false iff ReadAt is nil.
type Delivery struct {
	ID          string     `json:"id"`
	Content     string     `json:"content"`
	AuthorID    string     `json:"author_id"`
	RecipientID string     `json:"recipient_id"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at"`    // UTC
	CreatedAt   time.Time  `json:"created_at"` // UTC
}

func (d *Delivery) markRead(now time.Time) {
	now = now.UTC()
	d.IsRead = true
	d.ReadAt = &now
}

func (d *Delivery) markUnread() {
	d.IsRead = false
	d.ReadAt = nil
}

// ReadStateConsistent checks the read flag against the read timestamp.
func (d Delivery) ReadStateConsistent() bool {
	return d.IsRead == (d.ReadAt != nil)
}

type RecipientKind int

const (
	RecipientUser RecipientKind = iota + 1
	RecipientGroup
)

// GroupRefPrefix marks a group reference in the textual recipient encoding.
const GroupRefPrefix = "group:"

// RecipientRef points at either a single user or a whole group.
type RecipientRef struct {
	Kind RecipientKind
	ID   string
}

func UserRef(id string) RecipientRef  { return RecipientRef{Kind: RecipientUser, ID: id} }
func GroupRef(id string) RecipientRef { return RecipientRef{Kind: RecipientGroup, ID: id} }

// ParseRecipientRef decodes "group:<id>" into a group reference; anything else is a user ID.
func ParseRecipientRef(s string) RecipientRef {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, GroupRefPrefix) {
		return GroupRef(strings.TrimSpace(strings.TrimPrefix(s, GroupRefPrefix)))
	}
	return UserRef(s)
}

func (r RecipientRef) String() string {
	if r.Kind == RecipientGroup {
		return GroupRefPrefix + r.ID
	}
	return r.ID
}

// RecipientSet holds the resolved target user IDs of a notice.
type RecipientSet = group.MemberSet

// NewNotice contains information needed to send a notice.
type NewNotice struct {
	Content    string   `json:"content" validate:"required,notblank"`
	Recipients []string `json:"recipients" validate:"required,min=1,dive,recipient"`
}

func (nn *NewNotice) Validate(validate *validator.Validate) error {
	nn.Content = core.CleanString(nn.Content)
	for i, r := range nn.Recipients {
		nn.Recipients[i] = strings.TrimSpace(r)
	}
	return validate.Struct(nn)
}

// Refs decodes the textual recipients.
func (nn NewNotice) Refs() []RecipientRef {
	refs := make([]RecipientRef, 0, len(nn.Recipients))
	for _, r := range nn.Recipients {
		refs = append(refs, ParseRecipientRef(r))
	}
	return refs
}

type CreateResult struct {
	Count int `json:"count"`
}

type CountResult struct {
	Count int `json:"count"`
}

// QueryFilter narrows down deliveries. Empty fields are ignored.
type QueryFilter struct {
	RecipientID string
	AuthorID    string
	IsRead      *bool
}

// InboxFilter is the part of QueryFilter a recipient may set on their inbox.
type InboxFilter struct {
	IsRead *bool `query:"is_read"`
}

type Page struct {
	Count   int        `json:"count"`
	Results []Delivery `json:"results"`
}

// Candidates is the directory shown when composing a notice.
type Candidates struct {
	Users  []user.Contact  `json:"users"`
	Groups []group.Summary `json:"groups"`
}

// OrderingFields are the delivery fields a listing may be ordered by.
var OrderingFields = map[string]bool{
	"created_at": true,
	"read_at":    true,
	"is_read":    true,
}

// DefaultOrdering lists the newest deliveries first.
var DefaultOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
