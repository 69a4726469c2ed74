package domain

import "time"

// SnapshotStatus показывает, получен ли снимок каталога из хранилища или это деградированный пустой снимок.
type SnapshotStatus string

const (
	SnapshotFresh    SnapshotStatus = "fresh"
	SnapshotDegraded SnapshotStatus = "degraded"
)

// CatalogSnapshot — снимок каталога: число точек и их список. Действителен до следующей мутации.
type CatalogSnapshot struct {
	Count       uint64
	Points      []ImageRecord
	Status      SnapshotStatus
	Cause       error // причина деградации, nil для fresh
	RefreshedAt time.Time
}

// EmptySnapshot — снимок до первого обновления.
func EmptySnapshot() CatalogSnapshot {
	return CatalogSnapshot{
		Points: []ImageRecord{},
		Status: SnapshotFresh,
	}
}

func (s CatalogSnapshot) Degraded() bool {
	return s.Status == SnapshotDegraded
}

// Head возвращает первые limit записей снимка.
func (s CatalogSnapshot) Head(limit int) []ImageRecord {
	if limit <= 0 || len(s.Points) == 0 {
		return []ImageRecord{}
	}
	if limit > len(s.Points) {
		limit = len(s.Points)
	}

	head := make([]ImageRecord, limit)
	copy(head, s.Points[:limit])
	return head
}
