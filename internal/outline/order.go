package outline

// orderFor picks a display order for a line about to be inserted at index.
//
// Like a fractional rank, the new value is the midpoint of the gap between the
// neighbors. Display orders are integers, so when the neighbors are adjacent
// every subsequent line is shifted up by one to open a slot.
func (d *Document) orderFor(index int) int {
	prev := 0
	if index > 0 {
		prev = d.lines[index-1].order
	}
	if index >= len(d.lines) {
		return prev + 1
	}
	next := d.lines[index].order
	if next-prev >= 2 {
		return prev + (next-prev)/2
	}
	d.ShiftFrom(next)
	return next
}

// ShiftFrom increments the display order of every line whose order is at
// least from. Relative order is unchanged.
func (d *Document) ShiftFrom(from int) int {
	n := 0
	for _, l := range d.lines {
		if l.order >= from {
			l.order++
			n++
		}
	}
	return n
}

// Renumber assigns order = position+1 to every line and reports how many
// values changed.
func (d *Document) Renumber() int {
	n := 0
	for i, l := range d.lines {
		if l.order != i+1 {
			l.order = i + 1
			n++
		}
	}
	return n
}

func ordersIncreasing(lines []*Line) bool {
	for i := 1; i < len(lines); i++ {
		if lines[i].order <= lines[i-1].order {
			return false
		}
	}
	return true
}
