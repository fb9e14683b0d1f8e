package routes

import (
	"github.com/gin-gonic/gin"

	"tallyboard/internal/controllers"
	"tallyboard/internal/geo"
)

func RegionRoutes(r *gin.Engine, rc *controllers.RegionsController, limit []gin.HandlerFunc) {
	regions := r.Group("/api/regions", limit...)
	{
		regions.GET("/departments", rc.Departments)
		regions.GET("/communes", rc.Children(geo.LevelCommune, "departmentId"))
		regions.GET("/districts", rc.Children(geo.LevelDistrict, "communeId"))
		regions.GET("/villages", rc.Children(geo.LevelVillage, "districtId"))
		regions.GET("/centers", rc.Children(geo.LevelCenter, "villageId"))
		regions.GET("/stations", rc.Children(geo.LevelStation, "centerId"))
	}

	pairs := r.Group("/api/candidate-pairs", limit...)
	{
		pairs.GET("", rc.CandidatePairs)
	}
}
