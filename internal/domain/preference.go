package domain

import "sort"

// Preference — отметка пользователя для изображения.
type Preference string

const (
	Liked    Preference = "liked"
	Disliked Preference = "disliked"
)

// PreferenceSet хранит лайки и дизлайки. Один id находится не более чем в одном множестве.
type PreferenceSet struct {
	marks map[string]Preference
	order []string // порядок первых отметок, чтобы запросы были детерминированы
}

func NewPreferenceSet() *PreferenceSet {
	return &PreferenceSet{marks: make(map[string]Preference)}
}

// Like отмечает id как понравившийся, снимая дизлайк, если он был.
func (p *PreferenceSet) Like(id string) {
	p.mark(id, Liked)
}

// Dislike отмечает id как не понравившийся, снимая лайк, если он был.
func (p *PreferenceSet) Dislike(id string) {
	p.mark(id, Disliked)
}

// LikedIDs возвращает понравившиеся id в порядке отметки.
func (p *PreferenceSet) LikedIDs() []string {
	return p.collect(Liked)
}

// DislikedIDs возвращает не понравившиеся id в порядке отметки.
func (p *PreferenceSet) DislikedIDs() []string {
	return p.collect(Disliked)
}

func (p *PreferenceSet) mark(id string, pref Preference) {
	if _, ok := p.marks[id]; !ok {
		p.order = append(p.order, id)
	}
	p.marks[id] = pref
}

func (p *PreferenceSet) collect(pref Preference) []string {
	ids := make([]string, 0, len(p.order))
	for _, id := range p.order {
		if p.marks[id] == pref {
			ids = append(ids, id)
		}
	}
	return ids
}

// Overlap возвращает id, которые встречаются в обоих списках (отсортированы).
func Overlap(liked, disliked []string) []string {
	seen := make(map[string]struct{}, len(liked))
	for _, id := range liked {
		seen[id] = struct{}{}
	}

	var both []string
	for _, id := range disliked {
		if _, ok := seen[id]; ok {
			both = append(both, id)
			delete(seen, id)
		}
	}
	sort.Strings(both)
	return both
}
