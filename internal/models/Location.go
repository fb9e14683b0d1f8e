package models

// LocationPath is the full department → center path a submission claims.
type LocationPath struct {
	DepartmentID uint `json:"department_id"`
	CommuneID    uint `json:"commune_id"`
	DistrictID   uint `json:"district_id"`
	VillageID    uint `json:"village_id"`
	CenterID     uint `json:"center_id"`
}
