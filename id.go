package credits

import "github.com/xraph/credits/id"

// ID is the identifier type of journal entries and redemptions.
type ID = id.ID

// Prefix identifies the record kind encoded in a TypeID.
type Prefix = id.Prefix
