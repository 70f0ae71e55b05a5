package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	apperrors "github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"gorm.io/gorm"
)

const (
	maxEditorialLength = 20000
	maxEditorialURL    = 500
)

// Generator produces the reflection for one problem attempt. Failures are
// reported in ReflectionOutput.Error.
type Generator interface {
	Generate(ctx context.Context, in ReflectionInput) ReflectionOutput
}

// Per-problem outcomes of GenerateAll.
const (
	ReflectionAlreadyGenerated = "already_generated"
	ReflectionGenerated        = "generated"
	ReflectionFailed           = "failed"
)

// ProblemReflectionView is a contest problem together with its reflection,
// if one exists.
type ProblemReflectionView struct {
	ContestProblemID string                    `json:"contest_problem_id"`
	ProblemID        string                    `json:"problem_id"`
	ProblemName      string                    `json:"problem_name"`
	ProblemURL       string                    `json:"problem_url"`
	Topic            string                    `json:"topic"`
	Difficulty       int                       `json:"difficulty"`
	Status           models.ProblemStatus      `json:"status"`
	Solved           bool                      `json:"solved"`
	TimeTakenSeconds *int                      `json:"time_taken_seconds"`
	HasReflection    bool                      `json:"has_reflection"`
	Reflection       *models.ProblemReflection `json:"reflection"`
}

type ContestReflections struct {
	ContestID            string                  `json:"contest_id"`
	ProblemsCount        int                     `json:"problems_count"`
	ReflectionsGenerated int                     `json:"reflections_generated"`
	ReflectionsPending   int                     `json:"reflections_pending"`
	Problems             []ProblemReflectionView `json:"problems"`
}

type GenerateResult struct {
	ContestProblemID string `json:"contest_problem_id"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
}

type GenerateAllResult struct {
	ContestID      string           `json:"contest_id"`
	Results        []GenerateResult `json:"results"`
	TotalGenerated int              `json:"total_generated"`
	TotalFailed    int              `json:"total_failed"`
}

type ReflectionService struct {
	db        *gorm.DB
	generator Generator
	now       func() time.Time
}

func NewReflectionService(db *gorm.DB, generator Generator) *ReflectionService {
	return &ReflectionService{
		db:        db,
		generator: generator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// findContestProblem resolves ref as either the contest problem's own id or
// the catalog problem id within the contest.
func findContestProblem(tx *gorm.DB, contestID, ref string) (*models.ContestProblem, error) {
	var cp models.ContestProblem
	err := tx.Where("contest_id = ? AND (id = ? OR problem_id = ?)", contestID, ref, ref).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrProblemNotInContest.WithMessage(
			fmt.Sprintf("Problem %s not found in contest %s", ref, contestID))
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func findReflection(tx *gorm.DB, contestProblemID string) (*models.ProblemReflection, error) {
	var r models.ProblemReflection
	err := tx.Where("contest_problem_id = ?", contestProblemID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ReflectionService) loadContest(ctx context.Context, contestID string) (*models.Contest, error) {
	return loadContest(s.db.WithContext(ctx), contestID)
}

// SaveEditorial attaches the editorial a user pasted to a contest problem,
// creating the reflection record if needed. Saving does not clear a
// previously generated reflection.
func (s *ReflectionService) SaveEditorial(ctx context.Context, contestID, problemRef, text, editorialURL string) (*models.ProblemReflection, error) {
	text = utils.CleanUserText(text, maxEditorialLength)
	editorialURL = utils.TruncateString(editorialURL, maxEditorialURL)
	if text == "" && editorialURL == "" {
		return nil, apperrors.BadRequest("editorial_text or editorial_url is required")
	}

	var out *models.ProblemReflection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadContest(tx, contestID); err != nil {
			return err
		}
		cp, err := findContestProblem(tx, contestID, problemRef)
		if err != nil {
			return err
		}
		r, err := findReflection(tx, cp.ID)
		if err != nil {
			return err
		}
		if r == nil {
			r = &models.ProblemReflection{
				ID:               utils.GenerateID(),
				ContestID:        contestID,
				ContestProblemID: cp.ID,
				EditorialText:    text,
				EditorialURL:     editorialURL,
			}
			out = r
			return tx.Create(r).Error
		}
		r.EditorialText = text
		r.EditorialURL = editorialURL
		out = r
		return tx.Save(r).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Generate produces the reflection for one problem of a finished contest.
// A reflection that already succeeded is returned untouched; a failed or
// missing one is (re)generated and overwritten. Provider failures are
// stored on the record rather than returned.
func (s *ReflectionService) Generate(ctx context.Context, contestID, problemRef string) (*models.ProblemReflection, string, error) {
	contest, err := s.loadContest(ctx, contestID)
	if err != nil {
		return nil, "", err
	}
	if contest.Status == models.ContestStatusActive {
		return nil, "", apperrors.ErrContestNotActive.WithMessage("Reflections are available once the contest has ended")
	}
	cp, err := findContestProblem(s.db.WithContext(ctx), contestID, problemRef)
	if err != nil {
		return nil, "", err
	}
	return s.generateFor(ctx, contest, cp)
}

func (s *ReflectionService) generateFor(ctx context.Context, contest *models.Contest, cp *models.ContestProblem) (*models.ProblemReflection, string, error) {
	db := s.db.WithContext(ctx)

	r, err := findReflection(db, cp.ID)
	if err != nil {
		return nil, "", err
	}
	if r != nil && r.Generated() {
		return r, ReflectionAlreadyGenerated, nil
	}
	isNew := r == nil
	if isNew {
		r = &models.ProblemReflection{
			ID:               utils.GenerateID(),
			ContestID:        contest.ID,
			ContestProblemID: cp.ID,
		}
	}

	out := s.generator.Generate(ctx, ReflectionInput{
		ProblemName:      cp.ProblemName,
		ProblemURL:       cp.ProblemURL,
		Topic:            cp.Topic,
		Difficulty:       cp.Difficulty,
		Solved:           cp.Status == models.ProblemStatusSolved,
		TimeTakenSeconds: cp.TimeTakenSeconds,
		EditorialText:    r.EditorialText,
		EditorialURL:     r.EditorialURL,
		UserApproach:     cp.UserApproach,
		UserRating:       contest.RatingAtStart,
	})

	now := s.now()
	r.PivotSentence = out.PivotSentence
	r.Tips = out.Tips
	r.WhatToImprove = out.WhatToImprove
	r.MasterApproach = out.MasterApproach
	r.FullReflection = out.FullReflection
	r.ModelUsed = out.ModelUsed
	r.GenerationError = out.Error
	r.GeneratedAt = &now

	if isNew {
		err = db.Create(r).Error
	} else {
		err = db.Save(r).Error
	}
	if err != nil {
		return nil, "", err
	}

	status := ReflectionGenerated
	if out.Error != "" {
		status = ReflectionFailed
		logger.Warn().
			Str("contestId", contest.ID).
			Str("contestProblemId", cp.ID).
			Str("error", out.Error).
			Msg("Reflection generation failed")
	}
	reflectionsGenerated.WithLabelValues(status).Inc()
	return r, status, nil
}

// GenerateAll runs Generate for every problem of a finished contest, in
// selection order.
func (s *ReflectionService) GenerateAll(ctx context.Context, contestID string) (*GenerateAllResult, error) {
	contest, err := s.loadContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	if contest.Status == models.ContestStatusActive {
		return nil, apperrors.ErrContestNotActive.WithMessage("Reflections are available once the contest has ended")
	}

	res := &GenerateAllResult{ContestID: contestID, Results: make([]GenerateResult, 0, len(contest.Problems))}
	for i := range contest.Problems {
		cp := &contest.Problems[i]
		r, status, err := s.generateFor(ctx, contest, cp)
		if err != nil {
			return nil, err
		}
		item := GenerateResult{ContestProblemID: cp.ID, Status: status}
		if status == ReflectionFailed {
			item.Error = r.GenerationError
			res.TotalFailed++
		} else {
			res.TotalGenerated++
		}
		res.Results = append(res.Results, item)
	}
	return res, nil
}

func viewOf(cp *models.ContestProblem, r *models.ProblemReflection) ProblemReflectionView {
	return ProblemReflectionView{
		ContestProblemID: cp.ID,
		ProblemID:        cp.ProblemID,
		ProblemName:      cp.ProblemName,
		ProblemURL:       cp.ProblemURL,
		Topic:            cp.Topic,
		Difficulty:       cp.Difficulty,
		Status:           cp.Status,
		Solved:           cp.Status == models.ProblemStatusSolved,
		TimeTakenSeconds: cp.TimeTakenSeconds,
		HasReflection:    r != nil && r.PivotSentence != "",
		Reflection:       r,
	}
}

// ForContest lists every problem of a contest with its reflection state.
func (s *ReflectionService) ForContest(ctx context.Context, contestID string) (*ContestReflections, error) {
	contest, err := s.loadContest(ctx, contestID)
	if err != nil {
		return nil, err
	}

	var reflections []models.ProblemReflection
	if err := s.db.WithContext(ctx).Where("contest_id = ?", contestID).Find(&reflections).Error; err != nil {
		return nil, err
	}
	byProblem := make(map[string]*models.ProblemReflection, len(reflections))
	for i := range reflections {
		byProblem[reflections[i].ContestProblemID] = &reflections[i]
	}

	out := &ContestReflections{
		ContestID:     contestID,
		ProblemsCount: len(contest.Problems),
		Problems:      make([]ProblemReflectionView, 0, len(contest.Problems)),
	}
	for i := range contest.Problems {
		v := viewOf(&contest.Problems[i], byProblem[contest.Problems[i].ID])
		if v.HasReflection {
			out.ReflectionsGenerated++
		} else {
			out.ReflectionsPending++
		}
		out.Problems = append(out.Problems, v)
	}
	return out, nil
}

// ForProblem returns one problem of a contest with its reflection.
func (s *ReflectionService) ForProblem(ctx context.Context, contestID, problemRef string) (*ProblemReflectionView, error) {
	db := s.db.WithContext(ctx)
	cp, err := findContestProblem(db, contestID, problemRef)
	if err != nil {
		return nil, err
	}
	r, err := findReflection(db, cp.ID)
	if err != nil {
		return nil, err
	}
	v := viewOf(cp, r)
	return &v, nil
}
