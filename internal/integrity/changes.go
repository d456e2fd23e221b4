package integrity

import "github.com/noah-isme/sma-records/internal/models"

// Ref addresses one entity.
type Ref struct {
	Kind models.Kind
	ID   string
}

// Changes lists the rows a mutation touched. Primary is the entity the caller
// asked to change; Touched holds counterpart entities rewritten to keep
// relationships symmetric.
type Changes struct {
	Primary        Ref
	PrimaryDeleted bool
	Touched        []Ref
}

func (c *Changes) touch(kind models.Kind, id string) {
	if kind == c.Primary.Kind && id == c.Primary.ID {
		return
	}
	for _, ref := range c.Touched {
		if ref.Kind == kind && ref.ID == id {
			return
		}
	}
	c.Touched = append(c.Touched, Ref{Kind: kind, ID: id})
}

// TouchedIDs returns the counterpart ids of one kind.
func (c *Changes) TouchedIDs(kind models.Kind) []string {
	var ids []string
	for _, ref := range c.Touched {
		if ref.Kind == kind {
			ids = append(ids, ref.ID)
		}
	}
	return ids
}
