// Package sqlstore is a GORM/PostgreSQL-backed core.JobStore, for
// embedders that need job definitions to survive a process restart.
// Adapted from the teacher's JobRepository: same GORM query style
// (Where/Updates/gorm.Expr), restructured around the scheduler core's
// JobStore contract instead of the teacher's status-flag/tenant model.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/minisource/jobscheduler/internal/core"
)

// row is the GORM-mapped persistence shape of a core.Job. Trigger and
// CallableRef are stored as a kind tag plus a JSON config blob (see
// codec.go).
type row struct {
	ID                   string `gorm:"column:id;primaryKey"`
	Name                 string
	TriggerKind          string
	TriggerConfig        []byte `gorm:"type:jsonb"`
	CallableKind         string
	CallableConfig       []byte `gorm:"type:jsonb"`
	ArgsJSON             []byte `gorm:"type:jsonb"`
	KwargsJSON           []byte `gorm:"type:jsonb"`
	ExecutorAlias        string
	MisfireGraceSeconds  *int64
	Coalesce             bool
	MaxRuns              *int
	MaxInstances         int
	NextRunTime          *time.Time `gorm:"index:idx_jobs_next_run_time"`
	Runs                 int64
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

func (row) TableName() string { return "scheduler_jobs" }

// Store is a core.JobStore backed by a gorm.DB.
type Store struct {
	db *gorm.DB
}

// New returns a Store using db, which must already have row's table
// migrated (database.AutoMigrate, which cmd/main.go runs, migrates
// sqlstore.Migratable).
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migratable is exported so internal/database can AutoMigrate this package's
// table without reaching into its unexported row type.
type Migratable = row

func toRow(job *core.Job) (*row, error) {
	triggerKind, triggerConfig, err := encodeTrigger(job.Trigger)
	if err != nil {
		return nil, err
	}
	callableKind, callableConfig, err := encodeCallable(job.CallableRef)
	if err != nil {
		return nil, err
	}
	argsJSON, err := marshalAny(job.Args)
	if err != nil {
		return nil, err
	}
	kwargsJSON, err := marshalAny(job.Kwargs)
	if err != nil {
		return nil, err
	}

	var grace *int64
	if job.MisfireGraceTime != nil {
		s := int64(*job.MisfireGraceTime / time.Second)
		grace = &s
	}

	return &row{
		ID:                  string(job.ID),
		Name:                job.Name,
		TriggerKind:         triggerKind,
		TriggerConfig:       triggerConfig,
		CallableKind:        callableKind,
		CallableConfig:      callableConfig,
		ArgsJSON:            argsJSON,
		KwargsJSON:          kwargsJSON,
		ExecutorAlias:       job.ExecutorAlias,
		MisfireGraceSeconds: grace,
		Coalesce:            job.Coalesce,
		MaxRuns:             job.MaxRuns,
		MaxInstances:        job.MaxInstances,
		NextRunTime:         job.NextRunTime,
		Runs:                job.Runs,
	}, nil
}

func fromRow(r *row) (*core.Job, error) {
	trig, err := decodeTrigger(r.TriggerKind, r.TriggerConfig)
	if err != nil {
		return nil, err
	}
	callable, err := decodeCallable(r.CallableKind, r.CallableConfig)
	if err != nil {
		return nil, err
	}
	var args []any
	if err := unmarshalAny(r.ArgsJSON, &args); err != nil {
		return nil, err
	}
	var kwargs map[string]any
	if err := unmarshalAny(r.KwargsJSON, &kwargs); err != nil {
		return nil, err
	}

	var grace *time.Duration
	if r.MisfireGraceSeconds != nil {
		d := time.Duration(*r.MisfireGraceSeconds) * time.Second
		grace = &d
	}

	return &core.Job{
		ID:               core.JobID(r.ID),
		Name:             r.Name,
		CallableRef:      callable,
		Args:             args,
		Kwargs:           kwargs,
		Trigger:          trig,
		ExecutorAlias:    r.ExecutorAlias,
		MisfireGraceTime: grace,
		Coalesce:         r.Coalesce,
		MaxRuns:          r.MaxRuns,
		MaxInstances:     r.MaxInstances,
		NextRunTime:      r.NextRunTime,
		Runs:             r.Runs,
	}, nil
}

func (s *Store) AddJob(ctx context.Context, job *core.Job) error {
	r, err := toRow(job)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("sqlstore: add job: %w", err)
	}
	return nil
}

func (s *Store) LookupJob(ctx context.Context, id core.JobID) (*core.Job, error) {
	var r row
	err := s.db.WithContext(ctx).First(&r, "id = ?", string(id)).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("%w: job %q", core.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&r)
}

func (s *Store) ModifyJob(ctx context.Context, id core.JobID, changes core.JobChanges) (*core.Job, error) {
	var job *core.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r row
		if err := tx.First(&r, "id = ?", string(id)).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: job %q", core.ErrJobNotFound, id)
			}
			return err
		}

		current, err := fromRow(&r)
		if err != nil {
			return err
		}

		renamed, err := current.Apply(changes)
		if err != nil {
			return err
		}

		newRow, err := toRow(current)
		if err != nil {
			return err
		}

		if renamed != "" {
			var collide row
			if err := tx.First(&collide, "id = ?", string(renamed)).Error; err == nil {
				return fmt.Errorf("%w: job %q", core.ErrAliasInUse, renamed)
			} else if err != gorm.ErrRecordNotFound {
				return err
			}
			if err := tx.Delete(&row{}, "id = ?", string(id)).Error; err != nil {
				return err
			}
			if err := tx.Create(newRow).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Save(newRow).Error; err != nil {
				return err
			}
		}

		job = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Store) RemoveJob(ctx context.Context, id core.JobID) error {
	result := s.db.WithContext(ctx).Delete(&row{}, "id = ?", string(id))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %q", core.ErrJobNotFound, id)
	}
	return nil
}

func (s *Store) RemoveAllJobs(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&row{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&row{}).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *Store) GetAllJobs(ctx context.Context) ([]*core.Job, error) {
	var rows []row
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func (s *Store) DueScan(ctx context.Context, now time.Time) ([]*core.Job, error) {
	var rows []row
	err := s.db.WithContext(ctx).
		Where("next_run_time IS NOT NULL AND next_run_time <= ?", now).
		Order("next_run_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func (s *Store) GetNextRunTime(ctx context.Context) (time.Time, bool, error) {
	var r row
	err := s.db.WithContext(ctx).
		Where("next_run_time IS NOT NULL").
		Order("next_run_time ASC").
		First(&r).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return *r.NextRunTime, true, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeRows(rows []row) ([]*core.Job, error) {
	jobs := make([]*core.Job, 0, len(rows))
	for i := range rows {
		job, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

var _ core.JobStore = (*Store)(nil)
