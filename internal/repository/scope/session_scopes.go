package scope

import "gorm.io/gorm"

func ById(id string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func OrderById(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}
