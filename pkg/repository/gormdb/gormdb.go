package gormdb

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// GormDB is the MySQL repository backend. Encodings are stored as JSON
// columns; similarity search loads candidate rows and ranks them in Go.
type GormDB struct {
	db         *gorm.DB
	person     *personRepository
	face       *faceRepository
	attendance *attendanceRepository
}

var _ interfaces.Repository = &GormDB{}

// New connects to MySQL with the given DSN and migrates the schema.
func New(dsn string) (*GormDB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to mysql")
	}

	if err := db.AutoMigrate(&personRow{}, &faceRow{}, &recordRow{}, &departureRow{}, &tokenRow{}); err != nil {
		return nil, goerr.Wrap(err, "failed to migrate mysql schema")
	}

	return &GormDB{
		db:         db,
		person:     &personRepository{db: db},
		face:       &faceRepository{db: db},
		attendance: &attendanceRepository{db: db},
	}, nil
}

// DB exposes the underlying handle for migrations and test cleanup.
func (g *GormDB) DB() *gorm.DB {
	return g.db
}

func (g *GormDB) Person() interfaces.PersonRepository {
	return g.person
}

func (g *GormDB) Face() interfaces.FaceRepository {
	return g.face
}

func (g *GormDB) Attendance() interfaces.AttendanceRepository {
	return g.attendance
}

func (g *GormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}
