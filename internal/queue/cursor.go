package queue

// Cursor walks a snapshot of the log in enqueue order for one drain pass.
//
// Once an entity is held, every later change of that entity is skipped for
// the rest of the pass, which keeps per-entity remote order intact when a
// change fails. Changes nested under a held plan are skipped too while the
// plan's server id is unknown.
type Cursor struct {
	changes  []Change
	pos      int
	held     map[string]bool
	resolved map[string]bool
}

// Cursor returns a cursor over a snapshot of the current log. Changes
// enqueued after the call are not visited.
func (l *Log) Cursor() *Cursor {
	return &Cursor{
		changes:  l.Drainable(),
		held:     make(map[string]bool),
		resolved: make(map[string]bool),
	}
}

// Next returns the next change that is not blocked by a held entity.
func (c *Cursor) Next() (Change, bool) {
	for c.pos < len(c.changes) {
		ch := c.changes[c.pos]
		c.pos++
		if c.held[ch.LocalID] {
			continue
		}
		if ch.Parent != "" && c.held[ch.Parent] && ch.ParentServerID == "" && !c.resolved[ch.Parent] {
			continue
		}
		return ch, true
	}
	return Change{}, false
}

// Hold skips every remaining change of localID.
func (c *Cursor) Hold(localID string) {
	c.held[localID] = true
}

// Held reports whether localID is held.
func (c *Cursor) Held(localID string) bool {
	return c.held[localID]
}

// Resolve notes that localID obtained a server id during this pass, which
// releases changes nested under it even if the entity is later held.
func (c *Cursor) Resolve(localID string) {
	c.resolved[localID] = true
}

// Remaining returns how many snapshot changes have not been visited.
func (c *Cursor) Remaining() int {
	return len(c.changes) - c.pos
}
