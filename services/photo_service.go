package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/media"
	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/repository"
)

// SimilarPhoto is one match from FindSimilar. Distance is the smaller of the
// DCT and difference hash distances.
type SimilarPhoto struct {
	PhotoID  uuid.UUID `json:"photo_id"`
	Hothash  string    `json:"hothash"`
	Distance int       `json:"distance"`
}

type BackfillResult struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// PhotoService covers the photo lifecycle after registration: trash,
// tagging, rating and similarity search.
type PhotoService struct {
	photos    repository.PhotoRepositoryInterface
	processor *media.Processor
	log       *zerolog.Logger
}

func NewPhotoService(db *gorm.DB, processor *media.Processor) *PhotoService {
	return &PhotoService{
		photos:    repository.NewPhotoRepository(db),
		processor: processor,
		log:       logging.Component("photos"),
	}
}

func (s *PhotoService) Get(id uuid.UUID) (*models.Photo, error) {
	photo, err := s.photos.GetByID(id)
	if err != nil {
		return nil, notFound(err, "photo %s", id)
	}
	return photo, nil
}

func (s *PhotoService) SoftDelete(id uuid.UUID) error {
	if err := s.photos.SoftDelete(id); err != nil {
		return notFound(err, "photo %s", id)
	}
	return nil
}

func (s *PhotoService) Restore(id uuid.UUID) error {
	if err := s.photos.Restore(id); err != nil {
		return notFound(err, "trashed photo %s", id)
	}
	return nil
}

// EmptyTrash permanently deletes every trashed photo and its cold preview.
func (s *PhotoService) EmptyTrash() (int64, error) {
	trashed, err := s.photos.ListTrashed()
	if err != nil {
		return 0, err
	}
	if len(trashed) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, 0, len(trashed))
	for _, p := range trashed {
		ids = append(ids, p.ID)
	}
	deleted, err := s.photos.HardDelete(ids)
	if err != nil {
		return 0, err
	}

	for _, p := range trashed {
		if err := s.processor.DeleteColdPreview(p.Hothash); err != nil {
			s.log.Warn().Err(err).Str("hothash", p.Hothash).Msg("photos: failed to delete cold preview")
		}
	}
	s.log.Info().Int64("deleted", deleted).Msg("photos: trash emptied")
	return deleted, nil
}

// NormalizeTags trims, lower-cases and de-duplicates tags, dropping empty
// ones. The result is sorted.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s *PhotoService) SetTags(id uuid.UUID, tags []string) ([]string, error) {
	normalized := NormalizeTags(tags)
	if err := s.photos.SetTags(id, normalized); err != nil {
		return nil, notFound(err, "photo %s", id)
	}
	return normalized, nil
}

// SetRating sets a 1-5 rating; nil clears it.
func (s *PhotoService) SetRating(id uuid.UUID, rating *int) error {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	if err := s.photos.SetRating(id, rating); err != nil {
		return notFound(err, "photo %s", id)
	}
	return nil
}

// ComputeMissingPerceptualHashes fills in hashes for photos registered
// before they were computed, using the stored hot preview.
func (s *PhotoService) ComputeMissingPerceptualHashes() (BackfillResult, error) {
	photos, err := s.photos.ListMissingHashes()
	if err != nil {
		return BackfillResult{}, err
	}

	var res BackfillResult
	for _, p := range photos {
		hashes, err := media.ComputePerceptualHashes(p.HotPreview)
		if err != nil {
			s.log.Warn().Err(err).Str("photo", p.ID.String()).Msg("photos: cannot hash hot preview")
			res.Failed++
			continue
		}
		if err := s.photos.UpdateHashes(p.ID, media.ToStored(hashes.DCT), media.ToStored(hashes.Difference)); err != nil {
			s.log.Warn().Err(err).Str("photo", p.ID.String()).Msg("photos: cannot store hashes")
			res.Failed++
			continue
		}
		res.Updated++
	}
	return res, nil
}

// FindSimilar returns live photos within maxDistance of the photo on either
// hash, closest first. maxDistance <= 0 selects the default threshold.
func (s *PhotoService) FindSimilar(id uuid.UUID, maxDistance int) ([]SimilarPhoto, error) {
	if maxDistance <= 0 {
		maxDistance = media.DefaultSimilarityThreshold
	}

	target, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if target.DCTPerceptualHash == nil || target.DifferenceHash == nil {
		return []SimilarPhoto{}, nil
	}
	tDCT := media.FromStored(*target.DCTPerceptualHash)
	tDiff := media.FromStored(*target.DifferenceHash)

	candidates, err := s.photos.ListWithHashes()
	if err != nil {
		return nil, err
	}

	out := []SimilarPhoto{}
	for _, c := range candidates {
		if c.ID == target.ID {
			continue
		}
		d := min(
			media.HammingDistance(tDCT, media.FromStored(*c.DCTPerceptualHash)),
			media.HammingDistance(tDiff, media.FromStored(*c.DifferenceHash)),
		)
		if d <= maxDistance {
			out = append(out, SimilarPhoto{PhotoID: c.ID, Hothash: c.Hothash, Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Hothash < out[j].Hothash
	})
	return out, nil
}
