package converter

import "time"

// IngestedImageModel представляет запись таблицы ingested_images в PostgreSQL.
type IngestedImageModel struct {
	ID         string    `db:"id"`
	Collection string    `db:"collection"`
	ImagePath  string    `db:"image_path"`
	Dataset    string    `db:"dataset"`
	CreatedAt  time.Time `db:"created_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	EventKey    string     `db:"event_key"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
