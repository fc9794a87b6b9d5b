package db

import (
	"log"
	"os"

	"github.com/lazybark/go-pretty-code/logs"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gLogger "gorm.io/gorm/logger"

	"github.com/knifezred/123strm/models"
)

// OpenSQLite opens or creates a SQLite file
func OpenSQLite(name string, logger *logs.Logger) *gorm.DB {
	sqlite, err := gorm.Open(sqlite.Open(name), &gorm.Config{Logger: gLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gLogger.Config{LogLevel: gLogger.Silent},
	)})
	if err != nil {
		logger.Fatal("Error opening DB: ", err)
	}

	return sqlite
}

// Init migrates the schema. Existing records are kept: the path index must
// survive restarts for the delete watcher to stay useful.
func Init(db *gorm.DB) (err error) {
	err = db.AutoMigrate(&models.PathIndex{}, &models.JobRun{})

	return
}
