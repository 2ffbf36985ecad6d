// Package storage opens the repositories for the configured DB_DRIVER.
package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskmanager/internal/config"
	"taskmanager/internal/db"
	"taskmanager/internal/repository"
	"taskmanager/internal/repository/mongorepo"
)

// Storage bundles the user and task repositories of one backend.
type Storage struct {
	Users repository.UserRepository
	Tasks repository.TaskRepository

	gorm  *gorm.DB
	mongo *mongo.Database
	log   *zap.Logger
}

// Open connects to the backend selected by cfg.DBDriver.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Storage, error) {
	if cfg.DBDriver == config.DriverMongo {
		database, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return &Storage{
			Users: mongorepo.NewUserRepository(database),
			Tasks: mongorepo.NewTaskRepository(database),
			mongo: database,
			log:   log,
		}, nil
	}

	gdb, err := db.NewGorm(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Users: repository.NewUserRepository(gdb),
		Tasks: repository.NewTaskRepository(gdb),
		gorm:  gdb,
		log:   log,
	}, nil
}

// Migrate brings the schema up to date. For mongo, reset drops both
// collections before the indexes are rebuilt.
func (s *Storage) Migrate(ctx context.Context, reset bool) error {
	if s.mongo != nil {
		if reset {
			for _, name := range []string{db.UsersCollection, db.TasksCollection} {
				if err := s.mongo.Collection(name).Drop(ctx); err != nil {
					return fmt.Errorf("drop %s: %w", name, err)
				}
			}
		}
		if err := db.EnsureMongoIndexes(ctx, s.mongo); err != nil {
			return err
		}
	} else if err := db.Migrate(s.gorm, reset); err != nil {
		return err
	}
	s.log.Info("schema migrated", zap.String("driver", s.Driver()), zap.Bool("reset", reset))
	return nil
}

// Close releases the underlying connections.
func (s *Storage) Close(ctx context.Context) error {
	if s.mongo != nil {
		return s.mongo.Client().Disconnect(ctx)
	}
	sqlDB, err := s.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Driver names the active backend.
func (s *Storage) Driver() string {
	if s.mongo != nil {
		return config.DriverMongo
	}
	return s.gorm.Dialector.Name()
}
