package peaks

// entry is the state kept for one rung of the ladder
type entry struct {
	tracked bool
	peaks   []int64
	cursor  int64
}

// Ledger holds, for every threshold at or above the reliability floor, the
// absolute sample indices of the peaks found so far and the index at which
// scanning resumes. It is not safe for concurrent use.
type Ledger struct {
	entries [NumRungs]entry
	floor   Threshold
}

// NewLedger creates a ledger tracking every rung at or above floor
func NewLedger(floor Threshold) *Ledger {
	l := &Ledger{}
	l.Reset(floor)
	return l
}

// Reset drops every recorded peak and cursor and tracks the rungs at or above floor again
func (l *Ledger) Reset(floor Threshold) {
	l.floor = floor
	for i, t := range rungs {
		l.entries[i] = entry{tracked: t >= floor}
	}
}

// Floor returns the lowest threshold the ledger still tracks entries for
func (l *Ledger) Floor() Threshold {
	return l.floor
}

func (l *Ledger) entry(t Threshold) *entry {
	i, ok := Index(t)
	if !ok || !l.entries[i].tracked {
		return nil
	}
	return &l.entries[i]
}

// Tracked reports whether t currently has a ledger entry
func (l *Ledger) Tracked(t Threshold) bool {
	return l.entry(t) != nil
}

// RecordPeak appends an absolute sample index to the peaks of t. Peaks for
// untracked thresholds are dropped and false is returned.
func (l *Ledger) RecordPeak(t Threshold, index int64) bool {
	e := l.entry(t)
	if e == nil {
		return false
	}
	e.peaks = append(e.peaks, index)
	return true
}

// Peaks returns the recorded peaks of t in detection order. The slice is
// shared with the ledger and must not be modified.
func (l *Ledger) Peaks(t Threshold) []int64 {
	if e := l.entry(t); e != nil {
		return e.peaks
	}
	return nil
}

// Count returns the number of peaks recorded for t
func (l *Ledger) Count(t Threshold) int {
	return len(l.Peaks(t))
}

// Cursor returns the absolute index at which scanning of t resumes
func (l *Ledger) Cursor(t Threshold) int64 {
	if e := l.entry(t); e != nil {
		return e.cursor
	}
	return 0
}

// AdvanceCursor moves the cursor of t forward. Attempts to move it backwards are ignored.
func (l *Ledger) AdvanceCursor(t Threshold, next int64) {
	if e := l.entry(t); e != nil && next > e.cursor {
		e.cursor = next
	}
}

// PruneBelow removes the entries of every threshold strictly below floor and
// raises the ledger floor. A floor lower than the current one is ignored.
func (l *Ledger) PruneBelow(floor Threshold) {
	if floor <= l.floor {
		return
	}
	l.floor = floor
	for i, t := range rungs {
		if t < floor {
			l.entries[i] = entry{}
		}
	}
}

// Ingest scans one block starting at absolute index blockStart for every
// tracked threshold, resuming each at its cursor, and records the peaks found.
// scratch is reused for the per-threshold offsets and returned for the next call.
func (l *Ledger) Ingest(block []float64, blockStart int64, scratch []int) []int {
	blockEnd := blockStart + int64(len(block))

	for _, t := range Tracked(l.floor) {
		cursor := l.Cursor(t)
		if cursor >= blockEnd {
			continue
		}

		scratch = Scan(block, t, int(max(cursor-blockStart, 0)), scratch[:0])
		for _, off := range scratch {
			index := blockStart + int64(off)
			l.RecordPeak(t, index)
			l.AdvanceCursor(t, index+ExclusionWindow)
		}
	}

	return scratch
}
