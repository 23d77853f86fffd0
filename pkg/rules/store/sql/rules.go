package sql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/aclgate/pkg/acl"
	"github.com/marmos91/aclgate/pkg/rules"
)

// RuleRow is the GORM model for one stored rule. The identity columns carry
// a composite unique index so SetRule can upsert on conflict.
type RuleRow struct {
	ID          uint   `gorm:"primaryKey"`
	FolderID    int64  `gorm:"not null;index;uniqueIndex:idx_rule_identity"`
	SubjectType string `gorm:"not null;size:16;uniqueIndex:idx_rule_identity"`
	SubjectID   string `gorm:"not null;size:255;uniqueIndex:idx_rule_identity"`
	Path        string `gorm:"not null;size:1024;uniqueIndex:idx_rule_identity"`
	Mask        uint32 `gorm:"not null"`
	Permissions uint32 `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for RuleRow.
func (RuleRow) TableName() string {
	return "acl_rules"
}

func (r *RuleRow) toRule() acl.Rule {
	return acl.Rule{
		FolderID: r.FolderID,
		Subject: acl.Subject{
			Type: acl.SubjectType(r.SubjectType),
			ID:   r.SubjectID,
		},
		Path:        r.Path,
		Mask:        acl.Permissions(r.Mask),
		Permissions: acl.Permissions(r.Permissions),
	}
}

func rowFromRule(rule acl.Rule) RuleRow {
	return RuleRow{
		FolderID:    rule.FolderID,
		SubjectType: string(rule.Subject.Type),
		SubjectID:   rule.Subject.ID,
		Path:        rule.Path,
		Mask:        uint32(rule.Mask),
		Permissions: uint32(rule.Permissions),
	}
}

var _ rules.Store = (*SQLRuleStore)(nil)

func (s *SQLRuleStore) GetRule(ctx context.Context, folderID int64, subject acl.Subject, path string) (*acl.Rule, error) {
	var row RuleRow
	if err := s.db.WithContext(ctx).
		Where("folder_id = ? AND subject_type = ? AND subject_id = ? AND path = ?",
			folderID, string(subject.Type), subject.ID, acl.CleanPath(path)).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rules.ErrRuleNotFound
		}
		return nil, err
	}
	rule := row.toRule()
	return &rule, nil
}

func (s *SQLRuleStore) GetRulesForPaths(ctx context.Context, folderID int64, paths []string) (map[string][]acl.Rule, error) {
	result := make(map[string][]acl.Rule)
	if len(paths) == 0 {
		return result, nil
	}

	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, acl.CleanPath(p))
	}

	var rows []RuleRow
	if err := s.db.WithContext(ctx).
		Where("folder_id = ? AND path IN ?", folderID, cleaned).
		Order("path, subject_type, subject_id").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	for i := range rows {
		rule := rows[i].toRule()
		result[rule.Path] = append(result[rule.Path], rule)
	}
	return result, nil
}

func (s *SQLRuleStore) GetRulesForPrefix(ctx context.Context, folderID int64, prefix string) ([]acl.Rule, error) {
	clean := acl.CleanPath(prefix)

	query := s.db.WithContext(ctx).Where("folder_id = ?", folderID)
	if clean != "" {
		query = query.Where("path = ? OR path LIKE ? ESCAPE '\\'", clean, likeEscape(clean)+"/%")
	}

	var rows []RuleRow
	if err := query.Order("path, subject_type, subject_id").Find(&rows).Error; err != nil {
		return nil, err
	}

	matched := make([]acl.Rule, 0, len(rows))
	for i := range rows {
		matched = append(matched, rows[i].toRule())
	}
	return matched, nil
}

func (s *SQLRuleStore) SetRule(ctx context.Context, rule acl.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	row := rowFromRule(rule)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "folder_id"}, {Name: "subject_type"}, {Name: "subject_id"}, {Name: "path"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"mask", "permissions", "updated_at"}),
		}).
		Create(&row).Error
}

func (s *SQLRuleStore) DeleteRule(ctx context.Context, folderID int64, subject acl.Subject, path string) error {
	// Deleting a missing rule is not an error.
	return s.db.WithContext(ctx).
		Where("folder_id = ? AND subject_type = ? AND subject_id = ? AND path = ?",
			folderID, string(subject.Type), subject.ID, acl.CleanPath(path)).
		Delete(&RuleRow{}).Error
}

func (s *SQLRuleStore) ListRules(ctx context.Context, folderID int64) ([]acl.Rule, error) {
	return s.GetRulesForPrefix(ctx, folderID, "")
}

func (s *SQLRuleStore) ListFolders(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.WithContext(ctx).
		Model(&RuleRow{}).
		Distinct("folder_id").
		Order("folder_id").
		Pluck("folder_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
