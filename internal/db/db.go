package db

import (
	"log"

	"campuslink/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to postgres. Driver errors for unique violations are translated to
// gorm.ErrDuplicatedKey so repositories can detect them without driver codes.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
}

// Init opens the shared connection and migrates the schema.
func Init(dsn string) *gorm.DB {
	var err error
	DB, err = Open(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Database connection established")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")
	return DB
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.PostView{},
		&models.PostLike{},
		&models.CommentVote{},
		&models.Course{},
		&models.CourseAssignment{},
		&models.SpecialRequirement{},
	)
}
