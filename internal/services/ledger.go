package services

import (
	"context"
	"log"
	"sort"
	"strings"

	"campuslink/internal/apperror"
	"campuslink/internal/models"
	"campuslink/internal/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// PlanStore persists course assignments and special requirement state.
type PlanStore interface {
	ListCourseAssignments(ctx context.Context, userID string) ([]models.CourseAssignment, error)
	// UpsertCourseAssignment inserts or moves the (user, item key) row.
	UpsertCourseAssignment(ctx context.Context, a *models.CourseAssignment) error
	DeleteCourseAssignment(ctx context.Context, userID, itemKey string) error
	// DeleteSyntheticAssignments removes every line of the given kinds, in any category.
	DeleteSyntheticAssignments(ctx context.Context, userID string, kinds ...models.SyntheticKind) error
	ListSpecialRequirements(ctx context.Context, userID string) ([]models.SpecialRequirement, error)
	// SaveSpecialRequirement replaces the row of the same (user, requirement type).
	SaveSpecialRequirement(ctx context.Context, r *models.SpecialRequirement) error
	DeleteSpecialRequirement(ctx context.Context, userID string, t models.RequirementType) error
}

// PlanCacheKey is the cache key of a user's planner view.
func PlanCacheKey(userID string) string {
	return "planner:" + userID
}

var ethicsKinds = []models.SyntheticKind{models.KindEthicsCredit, models.KindEthicsDeduction}

// Plan is the in-memory projection of a user's assignments, rebuilt from the store.
type Plan struct {
	UserID     string
	Program    models.Program
	Categories map[models.CategoryKey][]models.CourseAssignment
	Rules      map[models.RequirementType]models.SpecialRequirement
}

func NewPlan(userID string, program models.Program, items []models.CourseAssignment, rules []models.SpecialRequirement) *Plan {
	p := &Plan{
		UserID:     userID,
		Program:    program,
		Categories: make(map[models.CategoryKey][]models.CourseAssignment),
		Rules:      make(map[models.RequirementType]models.SpecialRequirement),
	}
	for _, item := range items {
		p.Categories[item.Category] = append(p.Categories[item.Category], item)
	}
	for _, r := range rules {
		p.Rules[r.RequirementType] = r
	}
	return p
}

// Total sums the credits of every line in category, synthetic lines included.
func (p *Plan) Total(category models.CategoryKey) int {
	return p.totalWhere(category, func(models.CourseAssignment) bool { return true })
}

func (p *Plan) totalWhere(category models.CategoryKey, keep func(models.CourseAssignment) bool) int {
	total := 0
	for _, item := range p.Categories[category] {
		if keep(item) {
			total += item.Credits
		}
	}
	return total
}

func (p *Plan) Totals() map[models.CategoryKey]int {
	totals := make(map[models.CategoryKey]int, len(p.Categories))
	for key := range p.Categories {
		totals[key] = p.Total(key)
	}
	return totals
}

// CategoryOf returns the category currently holding a real course.
func (p *Plan) CategoryOf(courseID string) (models.CategoryKey, bool) {
	for key, items := range p.Categories {
		for _, item := range items {
			if !item.IsSynthetic() && item.ItemKey == courseID {
				return key, true
			}
		}
	}
	return "", false
}

// SelectedCourses lists the ids of the real courses in the plan, sorted.
func (p *Plan) SelectedCourses() []string {
	var ids []string
	for _, items := range p.Categories {
		for _, item := range items {
			if !item.IsSynthetic() {
				ids = append(ids, item.ItemKey)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func (p *Plan) hasCourse(courseID string) bool {
	_, ok := p.CategoryOf(courseID)
	return ok
}

// Lines returns the lines of the given kinds in every category.
func (p *Plan) Lines(kinds ...models.SyntheticKind) []models.CourseAssignment {
	var lines []models.CourseAssignment
	for _, items := range p.Categories {
		for _, item := range items {
			if containsKind(kinds, item.Kind) {
				lines = append(lines, item)
			}
		}
	}
	return lines
}

func (p *Plan) RuleEnabled(t models.RequirementType) bool {
	_, ok := p.Rules[t]
	return ok
}

func (p *Plan) removeWhere(match func(models.CourseAssignment) bool) {
	for key, items := range p.Categories {
		kept := items[:0:0]
		for _, item := range items {
			if !match(item) {
				kept = append(kept, item)
			}
		}
		if len(kept) == 0 {
			delete(p.Categories, key)
		} else {
			p.Categories[key] = kept
		}
	}
}

func (p *Plan) removeKinds(kinds ...models.SyntheticKind) {
	p.removeWhere(func(item models.CourseAssignment) bool { return containsKind(kinds, item.Kind) })
}

func (p *Plan) add(item models.CourseAssignment) {
	p.Categories[item.Category] = append(p.Categories[item.Category], item)
}

type planSnapshot struct {
	categories map[models.CategoryKey][]models.CourseAssignment
	rules      map[models.RequirementType]models.SpecialRequirement
}

func (p *Plan) snapshot() planSnapshot {
	s := planSnapshot{
		categories: make(map[models.CategoryKey][]models.CourseAssignment, len(p.Categories)),
		rules:      make(map[models.RequirementType]models.SpecialRequirement, len(p.Rules)),
	}
	for key, items := range p.Categories {
		s.categories[key] = append([]models.CourseAssignment(nil), items...)
	}
	for t, r := range p.Rules {
		s.rules[t] = r
	}
	return s
}

func (p *Plan) restore(s planSnapshot) {
	p.Categories = s.categories
	p.Rules = s.rules
}

func containsKind(kinds []models.SyntheticKind, kind models.SyntheticKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// command is one ledger mutation. revert is optional, by default the plan is restored
// to its state before apply.
type command struct {
	name    string
	apply   func(p *Plan)
	persist func(ctx context.Context) error
	revert  func(ctx context.Context, p *Plan)
}

// Ledger applies special program rules and course assignments to plans.
type Ledger struct {
	store PlanStore
	cache utils.Cache
	newID func() string
}

// NewLedger creates a ledger. cache may be nil.
func NewLedger(store PlanStore, cache utils.Cache) *Ledger {
	return &Ledger{store: store, cache: cache, newID: uuid.NewString}
}

// Load rebuilds the plan of userID from the store.
func (l *Ledger) Load(ctx context.Context, userID string, programID models.ProgramID) (*Plan, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Wrap(apperror.ErrInvalidInput, "user id is required")
	}
	program, err := models.LookupProgram(programID)
	if err != nil {
		return nil, err
	}
	items, err := l.store.ListCourseAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	rules, err := l.store.ListSpecialRequirements(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewPlan(userID, program, items, rules), nil
}

// run applies cmd to the plan and persists it. A persist failure reverts the plan
// before the error is returned. The cached planner view is dropped either way, a
// failed persist or its cleanup may already have written.
func (l *Ledger) run(ctx context.Context, p *Plan, cmd command) error {
	before := p.snapshot()
	cmd.apply(p)

	err := cmd.persist(ctx)
	if err != nil {
		log.Printf("Ledger %s for user %s failed, reverting: %v", cmd.name, p.UserID, err)
		if cmd.revert != nil {
			cmd.revert(ctx, p)
		} else {
			p.restore(before)
		}
	}

	if l.cache != nil {
		l.cache.Delete(ctx, PlanCacheKey(p.UserID))
	}
	return err
}

// EthicsDeductionCategory picks where the ethics deduction goes when the caller gives no
// category: 1-credit courses deduct from the technical core, larger courses from the
// category that currently holds them.
func (l *Ledger) EthicsDeductionCategory(p *Plan, course models.Course) (models.CategoryKey, error) {
	if course.Credits <= 1 {
		return models.JacobsTechnicalCore, nil
	}
	category, ok := p.CategoryOf(course.ID)
	if !ok {
		return "", errors.Wrapf(apperror.ErrNotFound, "course %s is not assigned", course.ID)
	}
	return category, nil
}

// SetEthicsSubstitution turns the ethics course substitution on or off. Enabling adds a
// +1 credit to the technical core and a -1 deduction to deductFrom, replacing any lines
// left by an earlier enable. Disabling removes both kinds of line from every category.
func (l *Ledger) SetEthicsSubstitution(ctx context.Context, p *Plan, enabled bool, course *models.Course, deductFrom *models.CategoryKey) error {
	if !enabled {
		return l.run(ctx, p, command{
			name: "disable ethics substitution",
			apply: func(p *Plan) {
				p.removeKinds(ethicsKinds...)
				delete(p.Rules, models.RequirementEthics)
			},
			persist: func(ctx context.Context) error {
				if err := l.store.DeleteSyntheticAssignments(ctx, p.UserID, ethicsKinds...); err != nil {
					return err
				}
				return l.store.DeleteSpecialRequirement(ctx, p.UserID, models.RequirementEthics)
			},
		})
	}

	if course == nil || course.ID == "" {
		return errors.Wrap(apperror.ErrInvalidInput, "an ethics course is required")
	}
	if !p.hasCourse(course.ID) {
		return errors.Wrapf(apperror.ErrInvalidInput, "course %s is not in the plan", course.ID)
	}

	var target models.CategoryKey
	if deductFrom == nil {
		var err error
		if target, err = l.EthicsDeductionCategory(p, *course); err != nil {
			return err
		}
	} else {
		target = *deductFrom
	}
	if !p.Program.Has(target) {
		return errors.Wrapf(apperror.ErrInvalidInput, "%s has no category %s", p.Program.ID, target)
	}

	core, ok := p.Program.Requirement(models.JacobsTechnicalCore)
	if !ok {
		return errors.Wrapf(apperror.ErrInvalidInput, "%s has no %s", p.Program.ID, models.JacobsTechnicalCore.DisplayName())
	}
	current := p.totalWhere(models.JacobsTechnicalCore, func(item models.CourseAssignment) bool {
		return !containsKind(ethicsKinds, item.Kind)
	})
	if current >= core.Credits {
		return errors.Wrapf(apperror.ErrCapacityExceeded, "%s already holds %d of %d credits",
			core.Name, current, core.Credits)
	}

	courseID := course.ID
	deduction := models.CourseAssignment{
		ID:       l.newID(),
		UserID:   p.UserID,
		ItemKey:  models.EthicsDeductionPrefix + l.newID(),
		CourseID: &courseID,
		Category: target,
		Credits:  -1,
		Kind:     models.KindEthicsDeduction,
	}
	credit := models.CourseAssignment{
		ID:       l.newID(),
		UserID:   p.UserID,
		ItemKey:  models.EthicsCreditKey,
		CourseID: &courseID,
		Category: models.JacobsTechnicalCore,
		Credits:  1,
		Kind:     models.KindEthicsCredit,
	}
	added := models.JacobsTechnicalCore
	rule := models.SpecialRequirement{
		UserID:               p.UserID,
		RequirementType:      models.RequirementEthics,
		SelectedCourseID:     &courseID,
		DeductedFromCategory: &target,
		CreditAmount:         1,
		AddedToCategory:      &added,
	}

	return l.run(ctx, p, command{
		name: "enable ethics substitution",
		apply: func(p *Plan) {
			p.removeKinds(ethicsKinds...)
			p.add(deduction)
			p.add(credit)
			p.Rules[models.RequirementEthics] = rule
		},
		persist: func(ctx context.Context) error {
			if err := l.store.DeleteSyntheticAssignments(ctx, p.UserID, ethicsKinds...); err != nil {
				return err
			}
			if err := l.store.UpsertCourseAssignment(ctx, &deduction); err != nil {
				return err
			}
			if err := l.store.UpsertCourseAssignment(ctx, &credit); err != nil {
				return err
			}
			return l.store.SaveSpecialRequirement(ctx, &rule)
		},
		revert: func(ctx context.Context, p *Plan) {
			p.removeKinds(ethicsKinds...)
			delete(p.Rules, models.RequirementEthics)
			l.cleanup(ctx, p.UserID, models.RequirementEthics, ethicsKinds...)
		},
	})
}

// SetAnchorCredit adds or removes the fixed 1-credit anchor course line in the
// programmatic core.
func (l *Ledger) SetAnchorCredit(ctx context.Context, p *Plan, enabled bool) error {
	if !enabled {
		return l.run(ctx, p, command{
			name: "disable anchor credit",
			apply: func(p *Plan) {
				p.removeKinds(models.KindAnchorCredit)
				delete(p.Rules, models.RequirementAnchor)
			},
			persist: func(ctx context.Context) error {
				if err := l.store.DeleteSyntheticAssignments(ctx, p.UserID, models.KindAnchorCredit); err != nil {
					return err
				}
				return l.store.DeleteSpecialRequirement(ctx, p.UserID, models.RequirementAnchor)
			},
		})
	}

	core, ok := p.Program.Requirement(models.JacobsProgrammaticCore)
	if !ok {
		return errors.Wrapf(apperror.ErrInvalidInput, "%s has no %s", p.Program.ID, models.JacobsProgrammaticCore.DisplayName())
	}
	current := p.totalWhere(models.JacobsProgrammaticCore, func(item models.CourseAssignment) bool {
		return item.Kind != models.KindAnchorCredit
	})
	if current >= core.Credits {
		return errors.Wrapf(apperror.ErrCapacityExceeded, "%s already holds %d of %d credits",
			core.Name, current, core.Credits)
	}

	credit := models.CourseAssignment{
		ID:       l.newID(),
		UserID:   p.UserID,
		ItemKey:  models.AnchorCreditKey,
		Category: models.JacobsProgrammaticCore,
		Credits:  1,
		Kind:     models.KindAnchorCredit,
	}
	added := models.JacobsProgrammaticCore
	rule := models.SpecialRequirement{
		UserID:          p.UserID,
		RequirementType: models.RequirementAnchor,
		CreditAmount:    1,
		AddedToCategory: &added,
	}

	return l.run(ctx, p, command{
		name: "enable anchor credit",
		apply: func(p *Plan) {
			p.removeKinds(models.KindAnchorCredit)
			p.add(credit)
			p.Rules[models.RequirementAnchor] = rule
		},
		persist: func(ctx context.Context) error {
			if err := l.store.UpsertCourseAssignment(ctx, &credit); err != nil {
				return err
			}
			return l.store.SaveSpecialRequirement(ctx, &rule)
		},
		revert: func(ctx context.Context, p *Plan) {
			p.removeKinds(models.KindAnchorCredit)
			delete(p.Rules, models.RequirementAnchor)
			l.cleanup(ctx, p.UserID, models.RequirementAnchor, models.KindAnchorCredit)
		},
	})
}

// cleanup strips a rule from the store after a failed enable. Errors are only logged,
// the store is authoritative on the next load.
func (l *Ledger) cleanup(ctx context.Context, userID string, t models.RequirementType, kinds ...models.SyntheticKind) {
	if err := l.store.DeleteSyntheticAssignments(ctx, userID, kinds...); err != nil {
		log.Printf("Cleanup of %s lines for user %s failed: %v", t, userID, err)
	}
	if err := l.store.DeleteSpecialRequirement(ctx, userID, t); err != nil {
		log.Printf("Cleanup of %s rule for user %s failed: %v", t, userID, err)
	}
}

// AssignCourse moves course into category, or out of the plan when category is nil.
func (l *Ledger) AssignCourse(ctx context.Context, p *Plan, course models.Course, category *models.CategoryKey) error {
	if strings.TrimSpace(course.ID) == "" {
		return errors.Wrap(apperror.ErrInvalidInput, "course id is required")
	}
	if models.IsSyntheticKey(course.ID) {
		return errors.Wrapf(apperror.ErrInvalidInput, "%s is reserved", course.ID)
	}
	if category != nil && !p.Program.Has(*category) {
		return errors.Wrapf(apperror.ErrInvalidInput, "%s has no category %s", p.Program.ID, *category)
	}

	var item models.CourseAssignment
	if category != nil {
		courseID := course.ID
		item = models.CourseAssignment{
			ID:       l.newID(),
			UserID:   p.UserID,
			ItemKey:  course.ID,
			CourseID: &courseID,
			Category: *category,
			Credits:  course.Credits,
		}
	}

	return l.run(ctx, p, command{
		name: "assign course",
		apply: func(p *Plan) {
			p.removeWhere(func(a models.CourseAssignment) bool {
				return !a.IsSynthetic() && a.ItemKey == course.ID
			})
			if category != nil {
				p.add(item)
			}
		},
		persist: func(ctx context.Context) error {
			if category == nil {
				return l.store.DeleteCourseAssignment(ctx, p.UserID, course.ID)
			}
			return l.store.UpsertCourseAssignment(ctx, &item)
		},
	})
}

type CategoryProgress struct {
	Key       models.CategoryKey `json:"key"`
	Name      string             `json:"name"`
	Total     int                `json:"total"`
	Required  int                `json:"required"`
	Remaining int                `json:"remaining"`
	Complete  bool               `json:"complete"`
	Over      bool               `json:"over"`
}

type Progress struct {
	Program    models.ProgramID   `json:"program"`
	Categories []CategoryProgress `json:"categories"`
	Total      int                `json:"total"`
	Required   int                `json:"required"`
	Complete   bool               `json:"complete"`
}

// Progress reports category totals against the program's requirements. Lines in
// categories the program does not have are ignored.
func (l *Ledger) Progress(p *Plan) Progress {
	out := Progress{Program: p.Program.ID, Required: p.Program.TotalCredits}
	for _, r := range p.Program.Requirements {
		total := p.Total(r.Key)
		remaining := r.Credits - total
		if remaining < 0 {
			remaining = 0
		}
		out.Categories = append(out.Categories, CategoryProgress{
			Key:       r.Key,
			Name:      r.Name,
			Total:     total,
			Required:  r.Credits,
			Remaining: remaining,
			Complete:  total >= r.Credits,
			Over:      total > r.Credits,
		})
		out.Total += total
	}
	out.Complete = out.Total >= out.Required
	return out
}
