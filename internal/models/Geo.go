package models

import "time"

// Department is the top administrative level. Names are unique nationally.
type Department struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Commune belongs to a department; the name is unique within it.
type Commune struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null;uniqueIndex:uq_commune_name_parent,priority:1" json:"name"`
	DepartmentID uint      `gorm:"not null;index;uniqueIndex:uq_commune_name_parent,priority:2" json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`

	Department *Department `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

// District (arrondissement) belongs to a commune.
type District struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uq_district_name_parent,priority:1" json:"name"`
	CommuneID uint      `gorm:"not null;index;uniqueIndex:uq_district_name_parent,priority:2" json:"commune_id"`
	CreatedAt time.Time `json:"created_at"`

	Commune *Commune `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

type Village struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null;uniqueIndex:uq_village_name_parent,priority:1" json:"name"`
	DistrictID uint      `gorm:"not null;index;uniqueIndex:uq_village_name_parent,priority:2" json:"district_id"`
	CreatedAt  time.Time `json:"created_at"`

	District *District `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

// Center is a physical voting location inside a village.
type Center struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex:uq_center_name_parent,priority:1" json:"name"`
	VillageID uint      `gorm:"not null;index;uniqueIndex:uq_center_name_parent,priority:2" json:"village_id"`
	CreatedAt time.Time `json:"created_at"`

	Village *Village `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

func (Department) TableName() string { return "departments" }
func (Commune) TableName() string    { return "communes" }
func (District) TableName() string   { return "districts" }
func (Village) TableName() string    { return "villages" }
func (Center) TableName() string     { return "centers" }

// NamedNode is the {id, name} projection served to the cascading picker.
type NamedNode struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}
