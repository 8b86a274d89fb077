package domain

import "sort"

// FeatureEntry: вектор признаков одного изображения датасета.
type FeatureEntry struct {
	Filename  string
	Embedding []float32
}

// FeatureDatabase: неизменяемая база векторов изображений, упорядоченная по имени файла.
// После публикации не меняется: перестроение создаёт новую базу.
type FeatureDatabase struct {
	entries []FeatureEntry
	index   map[string]int
}

// NewFeatureDatabase строит базу из отображения filename -> embedding.
func NewFeatureDatabase(vectors map[string][]float32) *FeatureDatabase {
	names := make([]string, 0, len(vectors))
	for name := range vectors {
		names = append(names, name)
	}
	sort.Strings(names)

	db := &FeatureDatabase{
		entries: make([]FeatureEntry, 0, len(names)),
		index:   make(map[string]int, len(names)),
	}
	for i, name := range names {
		db.entries = append(db.entries, FeatureEntry{Filename: name, Embedding: vectors[name]})
		db.index[name] = i
	}

	return db
}

// EmptyFeatureDatabase возвращает пустую базу.
func EmptyFeatureDatabase() *FeatureDatabase {
	return NewFeatureDatabase(nil)
}

func (db *FeatureDatabase) Len() int {
	return len(db.entries)
}

// Entries возвращает записи в порядке имён файлов. Срез нельзя изменять.
func (db *FeatureDatabase) Entries() []FeatureEntry {
	return db.entries
}

// Get возвращает вектор изображения по имени файла.
func (db *FeatureDatabase) Get(filename string) ([]float32, bool) {
	i, ok := db.index[filename]
	if !ok {
		return nil, false
	}
	return db.entries[i].Embedding, true
}

// Dimensions возвращает размерность векторов базы (0 для пустой базы или разной размерности).
func (db *FeatureDatabase) Dimensions() int {
	if len(db.entries) == 0 {
		return 0
	}

	dims := len(db.entries[0].Embedding)
	for _, entry := range db.entries[1:] {
		if len(entry.Embedding) != dims {
			return 0
		}
	}

	return dims
}

// Vectors возвращает базу в виде отображения filename -> embedding (формат файла кэша).
func (db *FeatureDatabase) Vectors() map[string][]float32 {
	out := make(map[string][]float32, len(db.entries))
	for _, entry := range db.entries {
		out[entry.Filename] = entry.Embedding
	}
	return out
}
