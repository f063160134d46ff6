package skill

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jonwraymond/codemode/discovery"
)

// record is the database row for a skill.
type record struct {
	Name           string    `gorm:"primaryKey;not null"`
	Language       string    `gorm:"not null"`
	Code           string    `gorm:"type:text;not null"`
	Description    string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	LastUsedAt     *time.Time
	ExecutionCount int64 `gorm:"default:0"`
	SuccessCount   int64 `gorm:"default:0"`
}

func (record) TableName() string { return "skills" }

func (r record) skill() Skill {
	s := Skill{
		Name:           r.Name,
		Language:       r.Language,
		Code:           r.Code,
		Description:    r.Description,
		CreatedAt:      r.CreatedAt,
		ExecutionCount: r.ExecutionCount,
		SuccessCount:   r.SuccessCount,
	}
	if r.LastUsedAt != nil {
		s.LastUsedAt = *r.LastUsedAt
	}
	return s
}

func (r record) summary() Summary {
	s := Summary{
		Name:           r.Name,
		Language:       r.Language,
		Description:    r.Description,
		CreatedAt:      r.CreatedAt,
		ExecutionCount: r.ExecutionCount,
		SuccessCount:   r.SuccessCount,
	}
	if r.LastUsedAt != nil {
		s.LastUsedAt = *r.LastUsedAt
	}
	return s
}

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and migrates the
// schema. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("skill: database path is empty")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sk Skill, opts SaveOptions) error {
	if err := sk.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing record
		err := tx.First(&existing, "name = ?", sk.Name).Error
		switch {
		case err == nil:
			if !opts.Overwrite {
				return conflictErr(sk.Name)
			}
			// Overwrite replaces the body but keeps provenance and
			// usage history.
			return tx.Model(&record{}).Where("name = ?", sk.Name).Updates(map[string]any{
				"language":    sk.Language,
				"code":        sk.Code,
				"description": sk.Description,
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&record{
				Name:        sk.Name,
				Language:    sk.Language,
				Code:        sk.Code,
				Description: sk.Description,
			}).Error
		default:
			return err
		}
	})
}

func (s *SQLiteStore) Load(ctx context.Context, name string) (Skill, error) {
	var r record
	if err := s.db.WithContext(ctx).First(&r, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Skill{}, notFoundErr(name)
		}
		return Skill{}, err
	}
	return r.skill(), nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	var rows []record
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.summary())
	}
	return out, nil
}

func (s *SQLiteStore) Search(ctx context.Context, keyword string) ([]Hit, error) {
	var rows []record
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]record, len(rows))
	cands := make([]discovery.Candidate, 0, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
		cands = append(cands, discovery.Candidate{Name: r.Name, Description: r.Description})
	}
	ranked := discovery.Rank(keyword, cands, 0)
	out := make([]Hit, 0, len(ranked))
	for _, rk := range ranked {
		out = append(out, Hit{Summary: byName[rk.Name].summary(), Score: rk.Score})
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Delete(&record{}, "name = ?", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundErr(name)
	}
	return nil
}

func (s *SQLiteStore) RecordUse(ctx context.Context, name string, success bool) error {
	now := time.Now()
	updates := map[string]any{
		"last_used_at":    &now,
		"execution_count": gorm.Expr("execution_count + 1"),
	}
	if success {
		updates["success_count"] = gorm.Expr("success_count + 1")
	}
	res := s.db.WithContext(ctx).Model(&record{}).Where("name = ?", name).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundErr(name)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// sortSummaries orders summaries by name for deterministic listings.
func sortSummaries(out []Summary) {
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
}
