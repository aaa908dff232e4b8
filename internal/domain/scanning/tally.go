package scanning

// TallyEntry is the running count for one decoded text
type TallyEntry struct {
	Text   string `json:"text"`
	Format string `json:"format"`
	Count  int    `json:"count"`
}

// Tally counts decoded payloads for a single acquisition.
// The leader only changes when another text strictly exceeds its count, so
// ties resolve to whichever text reached the maximum first.
type Tally struct {
	index   map[string]int
	entries []TallyEntry
	leader  int
	total   int
}

// NewTally creates an empty tally
func NewTally() *Tally {
	return &Tally{
		index:  make(map[string]int),
		leader: -1,
	}
}

// Add records one observation of the payload text
func (t *Tally) Add(p Payload) {
	i, ok := t.index[p.Text]
	if !ok {
		i = len(t.entries)
		t.index[p.Text] = i
		t.entries = append(t.entries, TallyEntry{Text: p.Text, Format: p.Format})
	}
	t.entries[i].Count++
	t.total++

	if t.leader < 0 || t.entries[i].Count > t.entries[t.leader].Count {
		t.leader = i
	}
}

// Total returns the number of observations recorded
func (t *Tally) Total() int {
	return t.total
}

// Leader returns the entry with the highest count.
// ok is false when nothing has been recorded.
func (t *Tally) Leader() (TallyEntry, bool) {
	if t.leader < 0 {
		return TallyEntry{}, false
	}
	return t.entries[t.leader], true
}

// Entries returns a copy of all entries in first-seen order
func (t *Tally) Entries() []TallyEntry {
	out := make([]TallyEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
