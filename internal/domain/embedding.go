package domain

// PayloadImagePath — ключ payload точки, в котором хранится путь к изображению.
const PayloadImagePath = "image_path"

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Embedding представляет точку для загрузки в векторное хранилище: id, вектор и payload.
type Embedding struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewEmbedding(id string, vector []float32, payload Payload) *Embedding {
	return &Embedding{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}

func NewPayload(imagePath string) Payload {
	return Payload{
		PayloadImagePath: imagePath,
	}
}

// ImagePath возвращает путь к изображению из payload и признак его наличия.
func (p Payload) ImagePath() (string, bool) {
	v, ok := p[PayloadImagePath].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
