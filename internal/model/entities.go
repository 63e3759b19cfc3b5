package model

import "time"

// Content is a blob entity. Date (its earliest date) only ever decreases once set, per
// invariant I4; a zero Date means "no date observed yet".
type Content struct {
	ID   ID
	Date time.Time
}

// HasDate reports whether an earliest date has been recorded for this content.
func (c Content) HasDate() bool { return !c.Date.IsZero() }

// Directory is a frontier candidate. Date (its earliest date at frontier) only decreases
// once set (invariant I2); Flat transitions false->true once and never
// reverses (invariant I6): before Flat is true no CNT_IN_DIR edges for this
// directory exist in storage, and once true all of them do.
type Directory struct {
	ID   ID
	Date time.Time
	Flat bool
}

// HasDate reports whether this directory has ever been promoted to a
// frontier (i.e. carries an isochrone date).
func (d Directory) HasDate() bool { return !d.Date.IsZero() }

// Revision is a commit node: an author Date and an optional preferred
// Origin. Date only ever decreases once set; Origin is last-writer-wins but
// only applied when the incoming value is non-zero (spec.md §4.1).
type Revision struct {
	ID     ID
	Date   time.Time
	Origin ID // zero value means "no preferred origin set"
}

// HasDate reports whether this revision has been ingested at least once.
func (r Revision) HasDate() bool { return !r.Date.IsZero() }

// HasOrigin reports whether a preferred origin has been recorded.
func (r Revision) HasOrigin() bool { return !r.Origin.IsZero() }

// Origin names a remote repository. Created once, immutable thereafter.
type Origin struct {
	ID  ID
	URL string
}

// Location interns a normalized relative path used by path-carrying
// relations (CNT_EARLY_IN_REV, CNT_IN_DIR, DIR_IN_REV).
type Location struct {
	ID    ID
	Bytes []byte
}
