package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/leadrail/leadrail/internal/observability/metrics"
	prefdomain "github.com/leadrail/leadrail/internal/preference/domain"
	"github.com/leadrail/leadrail/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const adjustRetries = 3

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) prefdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("preference.service"),
		genID:      p.GenID,
		obsMetrics: p.ObsMetrics,
	}
}

// Adjust runs the read-modify-write under optimistic concurrency: the
// UPDATE is guarded on the version we read, and the history insert is
// protected by the (account_id, version_number) unique index. A lost race
// on either shows up as zero rows or a duplicate key and we retry from a
// fresh read.
func (s *Service) Adjust(ctx context.Context, req prefdomain.AdjustRequest) (*prefdomain.AdjustResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}

	delta, ok := prefdomain.Delta(req.ActionType)
	if !ok {
		return nil, prefdomain.ErrUnknownActionType
	}

	var result prefdomain.WeightVector
	for attempt := 0; attempt < adjustRetries; attempt++ {
		applied, err := s.tryAdjust(ctx, accountID, delta, req)
		if err == nil {
			result = *applied
			break
		}
		if errConflict(err) && attempt < adjustRetries-1 {
			continue
		}
		return nil, err
	}

	s.obsMetrics.RecordWeightAdjust(ctx, string(req.ActionType))
	s.log.Debug("weights adjusted",
		zap.String("account_id", accountID.String()),
		zap.String("action_type", string(req.ActionType)),
		zap.Int64("version", result.Version),
	)

	return &prefdomain.AdjustResponse{
		TitleMatch:    result.TitleMatch,
		IndustryMatch: result.IndustryMatch,
		CompanySize:   result.CompanySize,
		Version:       result.Version,
	}, nil
}

func (s *Service) tryAdjust(ctx context.Context, accountID snowflake.ID, delta int64, req prefdomain.AdjustRequest) (*prefdomain.WeightVector, error) {
	var next prefdomain.WeightVector

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.findVector(ctx, tx, accountID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if current == nil {
			next = prefdomain.DefaultWeightVector(accountID).Apply(delta)
			next.Version = 1
			next.UpdatedAt = now
			if err := tx.WithContext(ctx).Create(&next).Error; err != nil {
				return err
			}
		} else {
			next = current.Apply(delta)
			next.Version = current.Version + 1
			next.UpdatedAt = now
			res := tx.WithContext(ctx).Exec(`
				UPDATE weight_vectors
				SET title_match = ?, industry_match = ?, company_size = ?, version = ?, updated_at = ?
				WHERE account_id = ? AND version = ?
			`, next.TitleMatch, next.IndustryMatch, next.CompanySize, next.Version, now, accountID, current.Version)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errStaleVector
			}
		}

		return tx.WithContext(ctx).Create(&prefdomain.WeightVersion{
			ID:            s.genID.Generate(),
			AccountID:     accountID,
			VersionNumber: next.Version,
			TitleMatch:    next.TitleMatch,
			IndustryMatch: next.IndustryMatch,
			CompanySize:   next.CompanySize,
			ActionType:    req.ActionType,
			SubjectRef:    strings.TrimSpace(req.SubjectRef),
			CreatedAt:     now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) GetCurrent(ctx context.Context, rawAccountID string) (*prefdomain.CurrentResponse, error) {
	accountID, err := parseAccountID(rawAccountID)
	if err != nil {
		return nil, err
	}

	vector, err := s.findVector(ctx, s.db, accountID)
	if err != nil {
		return nil, err
	}
	if vector == nil {
		defaults := prefdomain.DefaultWeightVector(accountID)
		vector = &defaults
	}

	return &prefdomain.CurrentResponse{
		TitleMatch:    vector.TitleMatch,
		IndustryMatch: vector.IndustryMatch,
		CompanySize:   vector.CompanySize,
		Version:       vector.Version,
	}, nil
}

func (s *Service) GetHistory(ctx context.Context, req prefdomain.HistoryRequest) (*prefdomain.HistoryResponse, error) {
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	query := s.db.WithContext(ctx).
		Model(&prefdomain.WeightVersion{}).
		Where("account_id = ?", accountID).
		Order("version_number ASC").
		Limit(pageSize + 1)

	if cursor := strings.TrimSpace(req.Cursor); cursor != "" {
		after, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return nil, prefdomain.ErrInvalidCursor
		}
		query = query.Where("version_number > ?", after)
	}

	var versions []prefdomain.WeightVersion
	if err := query.Find(&versions).Error; err != nil {
		return nil, err
	}

	resp := &prefdomain.HistoryResponse{}
	if len(versions) > pageSize {
		versions = versions[:pageSize]
		resp.HasMore = true
		resp.Cursor = strconv.FormatInt(versions[len(versions)-1].VersionNumber, 10)
	}

	for _, v := range versions {
		resp.Entries = append(resp.Entries, prefdomain.HistoryEntry{
			VersionNumber: v.VersionNumber,
			TitleMatch:    v.TitleMatch,
			IndustryMatch: v.IndustryMatch,
			CompanySize:   v.CompanySize,
			ActionType:    v.ActionType,
			SubjectRef:    v.SubjectRef,
			CreatedAt:     v.CreatedAt,
		})
	}

	return resp, nil
}

func (s *Service) findVector(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) (*prefdomain.WeightVector, error) {
	var vector prefdomain.WeightVector
	err := tx.WithContext(ctx).Raw(`
		SELECT * FROM weight_vectors WHERE account_id = ?
	`, accountID).Scan(&vector).Error
	if err != nil {
		return nil, err
	}
	if vector.AccountID == 0 {
		return nil, nil
	}
	return &vector, nil
}

var errStaleVector = errors.New("stale_weight_vector")

func errConflict(err error) bool {
	return errors.Is(err, errStaleVector) || db.IsDuplicateKeyErr(err)
}

func parseAccountID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, prefdomain.ErrInvalidAccount
	}
	return id, nil
}
