package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationAddVoteUniquenessIndex = "2026-08-12_add_vote_uniqueness_index"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationAddVoteUniquenessIndex, apply: addVoteUniquenessIndex},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// addVoteUniquenessIndex backstops the application-level duplicate-vote
// check. The index is partial: anonymous votes store a NULL voter_id and
// stay outside the constraint, so only authenticated voters are limited to
// one vote per poll. GORM tags cannot express a partial index, hence raw SQL.
func addVoteUniquenessIndex(db *gorm.DB) error {
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_votes_poll_voter " +
			"ON votes(poll_id, voter_id) WHERE voter_id IS NOT NULL;",
	).Error
}
