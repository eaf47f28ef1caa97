package record

import "time"

type foodLog struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerID    int64     `gorm:"column:owner_id;not null;index"`
	MediaRef   string    `gorm:"column:media_ref;type:text;not null"`
	Confidence *int      `gorm:"column:confidence"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`

	// Declared only so migrations create the foreign key; never preloaded.
	Ingredients []foodIngredient `gorm:"foreignKey:LogID;references:ID;constraint:OnDelete:CASCADE"`
}

func (foodLog) TableName() string {
	return "food_logs"
}

type foodIngredient struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	LogID       int64   `gorm:"column:log_id;not null;index"`
	Name        string  `gorm:"column:ingredient_name;type:text;not null"`
	Kcal        int     `gorm:"column:kcal;not null"`
	WeightGrams float64 `gorm:"column:weight;type:decimal(8,2);not null"`
}

func (foodIngredient) TableName() string {
	return "food_ingredients"
}

func mapLog(row foodLog) IngestionRecord {
	return IngestionRecord{
		ID:         row.ID,
		OwnerID:    row.OwnerID,
		MediaRef:   row.MediaRef,
		Confidence: row.Confidence,
		CreatedAt:  row.CreatedAt,
	}
}

func mapIngredient(row foodIngredient) IngredientEntry {
	return IngredientEntry{
		ID:          row.ID,
		LogID:       row.LogID,
		Name:        row.Name,
		Kcal:        row.Kcal,
		WeightGrams: row.WeightGrams,
	}
}
