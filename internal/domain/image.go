package domain

// ImageRecord описывает изображение в каталоге. ID назначается при загрузке и не переиспользуется,
// ImagePath — описательный payload, в идентичность не входит.
type ImageRecord struct {
	ID        string `json:"id"`
	ImagePath string `json:"image_path"`
}

func NewImageRecord(id string, imagePath string) ImageRecord {
	return ImageRecord{
		ID:        id,
		ImagePath: imagePath,
	}
}

// ScoredImage — результат поиска или рекомендации с оценкой, которую вернуло хранилище.
type ScoredImage struct {
	ImageRecord
	Score float32 `json:"score"`
}

func NewScoredImage(id string, imagePath string, score float32) ScoredImage {
	return ScoredImage{
		ImageRecord: NewImageRecord(id, imagePath),
		Score:       score,
	}
}
