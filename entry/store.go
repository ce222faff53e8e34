package entry

import "context"

type Store interface {
	// ListEntries returns an account's entries, newest first.
	ListEntries(ctx context.Context, accountID string, opts ListOpts) ([]*Entry, error)
}

type ListOpts struct {
	Reason    Reason
	Reference string
	Limit     int
	Offset    int
}

// Matches reports whether e passes the reason and reference filters.
func (o ListOpts) Matches(e *Entry) bool {
	if o.Reason != "" && e.Reason != o.Reason {
		return false
	}
	if o.Reference != "" && e.Reference != o.Reference {
		return false
	}
	return true
}
