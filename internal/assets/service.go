package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reelforge/studio/backend/internal/history"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	// ErrVersionExists indicates the asset already has a first version.
	ErrVersionExists = errors.New("assets: asset already has a version")
	// ErrNoCurrentVersion indicates the asset has no active version to operate on.
	ErrNoCurrentVersion = errors.New("assets: no current version")
	// ErrVersionNotFound indicates the requested archived version does not exist.
	ErrVersionNotFound = errors.New("assets: version not found")
	// ErrAlreadyCurrent indicates a restore targeted the active version.
	ErrAlreadyCurrent = errors.New("assets: version is already current")
	noOpLogger        = zap.NewNop()
)

// ServiceError wraps a failure with an operation-scoped code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code exposes the machine-readable failure code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew         = "assets.service.new"
	opCreateVersion      = "assets.create_version"
	opEditPrompt         = "assets.edit_prompt"
	opCompleteGeneration = "assets.complete_generation"
	opRestoreVersion     = "assets.restore_version"
	opHistory            = "assets.history"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for append-only action rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig bundles the dependencies of the version lifecycle service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger

	// DedupeHistory applies the (timestamp, type, prompt prefix) dedupe
	// pre-pass to reconciled timelines. Off by default: the reconciler's
	// contract is non-deduplicating and the backend does not replay actions.
	DedupeHistory bool
}

// Service persists asset versions and their action log, and produces the
// reconciled history timeline the dashboard renders.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	dedupe     bool
}

// NewService validates dependencies and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		dedupe:     cfg.DedupeHistory,
	}, nil
}

// CreateVersionRequest describes the first version of an asset.
type CreateVersionRequest struct {
	Prompt    string
	ModelTier int
}

// CreateVersion records version 1 of an asset as the current draft together
// with its initial_creation action.
func (s *Service) CreateVersion(ctx context.Context, ownerID OwnerID, assetID AssetID, req CreateVersionRequest) (*AssetVersion, error) {
	now := s.clock().UTC().Unix()

	var created AssetVersion
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&AssetVersion{}).
			Where("owner_id = ? AND asset_id = ?", ownerID.String(), assetID.String()).
			Count(&count).Error; err != nil {
			return newServiceError(opCreateVersion, "version_count_failed", err)
		}
		if count > 0 {
			return newServiceError(opCreateVersion, "version_exists", ErrVersionExists)
		}

		created = AssetVersion{
			OwnerID:          ownerID.String(),
			AssetID:          assetID.String(),
			Version:          1,
			Prompt:           req.Prompt,
			ModelTier:        req.ModelTier,
			Status:           StatusDraft,
			IsDraft:          true,
			IsCurrent:        true,
			CreatedAtSeconds: now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return newServiceError(opCreateVersion, "version_insert_failed", err)
		}

		action := VersionAction{
			OwnerID:           ownerID.String(),
			AssetID:           assetID.String(),
			Version:           1,
			ActionType:        string(history.ActionInitialCreation),
			Prompt:            req.Prompt,
			ModelTier:         req.ModelTier,
			OccurredAtSeconds: now,
		}
		return s.insertAction(tx, opCreateVersion, &action)
	})
	if txErr != nil {
		s.logError(opCreateVersion, txErr, ownerID, assetID)
		return nil, txErr
	}

	return &created, nil
}

// EditPrompt appends a prompt_edit action to the current version and moves its
// working prompt, without allocating a new version number.
func (s *Service) EditPrompt(ctx context.Context, ownerID OwnerID, assetID AssetID, newPrompt string) (*AssetVersion, error) {
	now := s.clock().UTC().Unix()

	var updated AssetVersion
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockCurrent(tx, opEditPrompt, ownerID, assetID)
		if err != nil {
			return err
		}

		action := VersionAction{
			OwnerID:           ownerID.String(),
			AssetID:           assetID.String(),
			Version:           current.Version,
			ActionType:        string(history.ActionPromptEdit),
			PreviousPrompt:    current.Prompt,
			NewPrompt:         newPrompt,
			OccurredAtSeconds: now,
		}
		if err := s.insertAction(tx, opEditPrompt, &action); err != nil {
			return err
		}

		current.Prompt = newPrompt
		current.IsDraft = true
		if err := tx.Save(current).Error; err != nil {
			return newServiceError(opEditPrompt, "version_save_failed", err)
		}
		updated = *current
		return nil
	})
	if txErr != nil {
		s.logError(opEditPrompt, txErr, ownerID, assetID)
		return nil, txErr
	}

	return &updated, nil
}

// GenerationResult describes a completed generation run.
type GenerationResult struct {
	DestinationPath    string
	Duration           float64
	Model              string
	ModelTier          int
	RegenerationReason string
}

// CompleteGeneration archives the current version and promotes a freshly
// generated successor, recording a content_generation action that spans the
// transition. Invalid durations coerce to zero rather than failing.
func (s *Service) CompleteGeneration(ctx context.Context, ownerID OwnerID, assetID AssetID, result GenerationResult) (*AssetVersion, error) {
	now := s.clock().UTC().Unix()
	duration := result.Duration
	if duration < 0 {
		duration = 0
	}

	var promoted AssetVersion
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockCurrent(tx, opCompleteGeneration, ownerID, assetID)
		if err != nil {
			return err
		}

		editCount, err := s.countPromptEdits(tx, ownerID, assetID, current.Version)
		if err != nil {
			return newServiceError(opCompleteGeneration, "edit_count_failed", err)
		}

		current.IsCurrent = false
		if err := tx.Save(current).Error; err != nil {
			return newServiceError(opCompleteGeneration, "archive_failed", err)
		}

		promoted = AssetVersion{
			OwnerID:          ownerID.String(),
			AssetID:          assetID.String(),
			Version:          current.Version + 1,
			Prompt:           current.Prompt,
			DestinationPath:  result.DestinationPath,
			Duration:         duration,
			ModelTier:        result.ModelTier,
			Status:           StatusGenerated,
			IsDraft:          false,
			IsCurrent:        true,
			CreatedAtSeconds: now,
		}
		if err := tx.Create(&promoted).Error; err != nil {
			return newServiceError(opCompleteGeneration, "version_insert_failed", err)
		}

		fromVersion := current.Version
		toVersion := promoted.Version
		action := VersionAction{
			OwnerID:            ownerID.String(),
			AssetID:            assetID.String(),
			Version:            promoted.Version,
			ActionType:         string(history.ActionContentGeneration),
			FromVersion:        &fromVersion,
			ToVersion:          &toVersion,
			FinalPrompt:        current.Prompt,
			RegenerationReason: result.RegenerationReason,
			Duration:           duration,
			Model:              result.Model,
			ModelTier:          result.ModelTier,
			TotalEdits:         editCount,
			ContentPath:        result.DestinationPath,
			WasCompleted:       true,
			ContentGenerated:   true,
			OccurredAtSeconds:  now,
		}
		return s.insertAction(tx, opCompleteGeneration, &action)
	})
	if txErr != nil {
		s.logError(opCompleteGeneration, txErr, ownerID, assetID)
		return nil, txErr
	}

	return &promoted, nil
}

// RestoreVersion re-activates an archived version's content as a new version
// number, recording a version_restoration action that carries the source.
func (s *Service) RestoreVersion(ctx context.Context, ownerID OwnerID, assetID AssetID, sourceVersion int) (*AssetVersion, error) {
	now := s.clock().UTC().Unix()

	var restored AssetVersion
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.lockCurrent(tx, opRestoreVersion, ownerID, assetID)
		if err != nil {
			return err
		}
		if current.Version == sourceVersion {
			return newServiceError(opRestoreVersion, "already_current", ErrAlreadyCurrent)
		}

		var source AssetVersion
		err = tx.Where("owner_id = ? AND asset_id = ? AND version = ?",
			ownerID.String(), assetID.String(), sourceVersion).Take(&source).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opRestoreVersion, "version_not_found", ErrVersionNotFound)
		}
		if err != nil {
			return newServiceError(opRestoreVersion, "version_select_failed", err)
		}

		current.IsCurrent = false
		if err := tx.Save(current).Error; err != nil {
			return newServiceError(opRestoreVersion, "archive_failed", err)
		}

		restored = AssetVersion{
			OwnerID:          ownerID.String(),
			AssetID:          assetID.String(),
			Version:          current.Version + 1,
			Prompt:           source.Prompt,
			DestinationPath:  source.DestinationPath,
			Duration:         source.Duration,
			ModelTier:        source.ModelTier,
			Status:           source.Status,
			IsDraft:          source.IsDraft,
			IsCurrent:        true,
			CreatedAtSeconds: now,
		}
		if err := tx.Create(&restored).Error; err != nil {
			return newServiceError(opRestoreVersion, "version_insert_failed", err)
		}

		fromVersion := current.Version
		toVersion := restored.Version
		sourceRef := sourceVersion
		action := VersionAction{
			OwnerID:           ownerID.String(),
			AssetID:           assetID.String(),
			Version:           restored.Version,
			ActionType:        string(history.ActionVersionRestoration),
			FromVersion:       &fromVersion,
			ToVersion:         &toVersion,
			Prompt:            source.Prompt,
			SourceVersion:     &sourceRef,
			ContentPath:       source.DestinationPath,
			OccurredAtSeconds: now,
		}
		return s.insertAction(tx, opRestoreVersion, &action)
	})
	if txErr != nil {
		s.logError(opRestoreVersion, txErr, ownerID, assetID)
		return nil, txErr
	}

	return &restored, nil
}

// History loads the asset's full version set and reconciles it into the
// display timeline, most recent action first.
func (s *Service) History(ctx context.Context, ownerID OwnerID, assetID AssetID) ([]history.AnnotatedAction, error) {
	var versions []AssetVersion
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND asset_id = ?", ownerID.String(), assetID.String()).
		Order("version ASC").
		Find(&versions).Error; err != nil {
		wrapped := newServiceError(opHistory, "version_query_failed", err)
		s.logError(opHistory, wrapped, ownerID, assetID)
		return nil, wrapped
	}

	var actions []VersionAction
	if err := s.db.WithContext(ctx).
		Where("owner_id = ? AND asset_id = ?", ownerID.String(), assetID.String()).
		Order("occurred_at_s ASC, action_id ASC").
		Find(&actions).Error; err != nil {
		wrapped := newServiceError(opHistory, "action_query_failed", err)
		s.logError(opHistory, wrapped, ownerID, assetID)
		return nil, wrapped
	}

	current, archived := buildVersionRecords(versions, actions)
	timeline := history.Reconcile(current, archived)
	if s.dedupe {
		timeline = history.DedupeActions(timeline)
	}
	return timeline, nil
}

func (s *Service) lockCurrent(tx *gorm.DB, operation string, ownerID OwnerID, assetID AssetID) (*AssetVersion, error) {
	var current AssetVersion
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ? AND asset_id = ? AND is_current = ?", ownerID.String(), assetID.String(), true).
		Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(operation, "no_current_version", ErrNoCurrentVersion)
	}
	if err != nil {
		return nil, newServiceError(operation, "current_select_failed", err)
	}
	return &current, nil
}

func (s *Service) countPromptEdits(tx *gorm.DB, ownerID OwnerID, assetID AssetID, version int) (int, error) {
	var count int64
	err := tx.Model(&VersionAction{}).
		Where("owner_id = ? AND asset_id = ? AND version = ? AND action_type = ?",
			ownerID.String(), assetID.String(), version, string(history.ActionPromptEdit)).
		Count(&count).Error
	return int(count), err
}

func (s *Service) insertAction(tx *gorm.DB, operation string, action *VersionAction) error {
	actionID, err := s.idProvider.NewID()
	if err != nil {
		return newServiceError(operation, "id_generation_failed", err)
	}
	action.ActionID = actionID
	if err := tx.Create(action).Error; err != nil {
		return newServiceError(operation, "action_insert_failed", err)
	}
	return nil
}

func (s *Service) logError(operation string, err error, ownerID OwnerID, assetID AssetID) {
	s.logger.Error("asset version service error",
		zap.String("operation", operation),
		zap.String("owner_id", ownerID.String()),
		zap.String("asset_id", assetID.String()),
		zap.Error(err))
}
