package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/blobstore"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
)

type CacheStatus string

const (
	CacheHit  CacheStatus = "hit"
	CacheMiss CacheStatus = "miss"
)

// orphanGrace keeps GC away from blobs whose metadata upsert may still be in
// flight.
const orphanGrace = 10 * time.Minute

// AvatarResult is a cached avatar. Image is standard base64 of the stored
// bytes.
type AvatarResult struct {
	Image  string
	Status CacheStatus
	Digest string
}

// AvatarService keeps a user's avatar blob and its metadata record
// consistent. The blob is always written before the record, so a record
// never points at a blob that was not fully written.
type AvatarService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	blobs   blobstore.Store
	users   UserDirectory
	fetcher ImageFetcher
	log     logging.Logger
	now     func() time.Time

	// gcMu pairs each blob write with its metadata upsert. Populations share
	// it; CollectOrphans takes it exclusively around each delete decision.
	gcMu sync.RWMutex
}

func NewAvatarService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.Store,
	users UserDirectory, fetcher ImageFetcher, log logging.Logger) *AvatarService {
	return &AvatarService{
		db:      db,
		repos:   m,
		blobs:   blobs,
		users:   users,
		fetcher: fetcher,
		log:     log.With("module", "avatars"),
		now:     time.Now,
	}
}

// GetOrPopulate returns the cached avatar of userID, downloading and caching
// it on the first request.
//
// A record whose blob is missing is a common.ErrConsistencyFault, never a
// miss. A user unknown to the identity service is common.ErrNotFound.
func (s *AvatarService) GetOrPopulate(ctx context.Context, userID int64) (*AvatarResult, error) {
	rec, err := s.repos.Avatars(s.db).GetByUserID(ctx, userID)
	switch {
	case err == nil:
		return s.hit(ctx, rec)
	case errors.Is(err, common.ErrNotFound):
		return s.populate(ctx, userID)
	default:
		return nil, fmt.Errorf("%w: avatar lookup %d: %v", common.ErrStorageFault, userID, err)
	}
}

func (s *AvatarService) hit(ctx context.Context, rec *models.AvatarRecord) (*AvatarResult, error) {
	data, err := s.blobs.Read(ctx, rec.Location)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotExist) {
			s.log.Error(ctx, "avatar_blob_missing", "user_id", rec.UserID, "location", rec.Location)
			return nil, fmt.Errorf("%w: user %d: blob %s missing", common.ErrConsistencyFault, rec.UserID, rec.Location)
		}
		return nil, fmt.Errorf("%w: read blob %s: %v", common.ErrStorageFault, rec.Location, err)
	}

	s.log.Debug(ctx, "avatar_cache_hit", "user_id", rec.UserID)
	return &AvatarResult{
		Image:  base64.StdEncoding.EncodeToString(data),
		Status: CacheHit,
		Digest: rec.Digest,
	}, nil
}

func (s *AvatarService) populate(ctx context.Context, userID int64) (*AvatarResult, error) {
	s.log.Info(ctx, "avatar_cache_miss", "user_id", userID)

	user, err := lookupUser(ctx, s.users, s.repos.Users(s.db), userID)
	if err != nil {
		return nil, err
	}

	data, err := s.fetcher.Fetch(ctx, user.Avatar)
	if err != nil {
		return nil, upstreamErr(err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty avatar for user %d", common.ErrUpstreamUnavailable, userID)
	}

	digest := blobstore.Digest(data)
	key := blobstore.KeyFor(userID)

	if err := s.store(ctx, &models.AvatarRecord{UserID: userID, Digest: digest, Location: key}, data); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "avatar_cached", "user_id", userID, "digest", digest, "bytes", len(data))
	return &AvatarResult{
		Image:  base64.StdEncoding.EncodeToString(data),
		Status: CacheMiss,
		Digest: digest,
	}, nil
}

// store writes the blob, then its record.
func (s *AvatarService) store(ctx context.Context, rec *models.AvatarRecord, data []byte) error {
	s.gcMu.RLock()
	defer s.gcMu.RUnlock()

	if err := s.blobs.Write(ctx, rec.Location, data); err != nil {
		return fmt.Errorf("%w: write blob %s: %v", common.ErrStorageFault, rec.Location, err)
	}
	if err := s.repos.Avatars(s.db).Upsert(ctx, rec); err != nil {
		s.log.Error(ctx, "avatar_metadata_write_failed", "user_id", rec.UserID, "location", rec.Location, "error", err)
		return fmt.Errorf("%w: save avatar %d: %v", common.ErrStorageFault, rec.UserID, err)
	}
	return nil
}

// Delete removes the avatar of userID and reports whether there was one.
// A blob that is already gone, or fails to delete, does not stop the record
// from being removed.
func (s *AvatarService) Delete(ctx context.Context, userID int64) (bool, error) {
	var deleted bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Avatars(tx)

		rec, err := repo.GetByUserID(ctx, userID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := s.blobs.Delete(ctx, rec.Location); err != nil {
			s.log.Warn(ctx, "avatar_blob_delete_failed", "user_id", userID, "location", rec.Location, "error", err)
		}

		if _, err := repo.Delete(ctx, userID); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: delete avatar %d: %v", common.ErrStorageFault, userID, err)
	}
	if deleted {
		s.log.Info(ctx, "avatar_deleted", "user_id", userID)
	}
	return deleted, nil
}

// CollectOrphans removes blobs that no metadata record points at, left
// behind when a metadata write failed after the blob write. Blobs younger
// than orphanGrace are kept. It returns the number of blobs removed; stores
// that cannot list their content are skipped.
//
// The listing and the location snapshot are only a first filter: each
// candidate is checked again against its record and its current ModTime
// before it is deleted.
func (s *AvatarService) CollectOrphans(ctx context.Context) (int, error) {
	lister, ok := s.blobs.(blobstore.Lister)
	if !ok {
		return 0, nil
	}

	infos, err := lister.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list blobs: %v", common.ErrStorageFault, err)
	}
	locations, err := s.repos.Avatars(s.db).Locations(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: list avatar locations: %v", common.ErrStorageFault, err)
	}

	referenced := make(map[string]struct{}, len(locations))
	for _, l := range locations {
		referenced[l] = struct{}{}
	}

	removed := 0
	for _, in := range infos {
		if _, ok := referenced[in.Key]; ok || in.ModTime.After(s.now().Add(-orphanGrace)) {
			continue
		}
		gone, err := s.collectOrphan(ctx, lister, in.Key)
		if err != nil {
			if ctx.Err() != nil {
				return removed, ctx.Err()
			}
			s.log.Warn(ctx, "orphan_blob_delete_failed", "location", in.Key, "error", err)
			continue
		}
		if gone {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info(ctx, "orphan_blobs_collected", "count", removed)
	}
	return removed, nil
}

// collectOrphan deletes key unless a record now points at it or it was
// rewritten within orphanGrace.
func (s *AvatarService) collectOrphan(ctx context.Context, lister blobstore.Lister, key string) (bool, error) {
	s.gcMu.Lock()
	defer s.gcMu.Unlock()

	if id, ok := blobstore.UserIDFromKey(key); ok {
		rec, err := s.repos.Avatars(s.db).GetByUserID(ctx, id)
		switch {
		case err == nil && rec.Location == key:
			return false, nil
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return false, err
		}
	}

	in, err := lister.Stat(ctx, key)
	if errors.Is(err, blobstore.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if in.ModTime.After(s.now().Add(-orphanGrace)) {
		return false, nil
	}

	if err := s.blobs.Delete(ctx, key); err != nil {
		if errors.Is(err, blobstore.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
