package rollup

// warnings collects messages in first-seen order without duplicates.
type warnings struct {
	list []string
	seen map[string]struct{}
}

func (w *warnings) add(msg string) {
	if w.seen == nil {
		w.seen = make(map[string]struct{})
	}
	if _, ok := w.seen[msg]; ok {
		return
	}
	w.seen[msg] = struct{}{}
	w.list = append(w.list, msg)
}
