package models

// Address lookup tables. They are seeded externally and only read here.

type Region struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Name string `gorm:"not null;size:255" json:"name"`
}

type Province struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Code     string  `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Name     string  `gorm:"not null;size:255" json:"name"`
	RegionID uint    `gorm:"not null;index" json:"region"`
	Region   *Region `gorm:"foreignKey:RegionID;constraint:OnDelete:CASCADE" json:"-"`
}

type City struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Code       string    `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Name       string    `gorm:"not null;size:255" json:"name"`
	ProvinceID uint      `gorm:"not null;index" json:"province"`
	Province   *Province `gorm:"foreignKey:ProvinceID;constraint:OnDelete:CASCADE" json:"-"`
}

type Barangay struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Code   string `gorm:"uniqueIndex;not null;size:20" json:"code"`
	Name   string `gorm:"not null;size:255" json:"name"`
	CityID uint   `gorm:"not null;index" json:"city"`
	City   *City  `gorm:"foreignKey:CityID;constraint:OnDelete:CASCADE" json:"-"`
}

// AllModels lists every table in migration order.
func AllModels() []any {
	return []any{
		&Region{}, &Province{}, &City{}, &Barangay{},
		&User{}, &Project{}, &Supervisor{}, &Client{},
		&FieldWorker{}, &Phase{}, &Subtask{}, &SubtaskAssignment{},
		&Attendance{},
	}
}
