package store

import (
	"fmt"

	"github.com/planhub/concierge/internal/extract"
	"github.com/planhub/concierge/internal/models"
)

// maxNameMatches bounds fuzzy name resolution.
const maxNameMatches = 5

// Resolved is an extracted entity reference bound to a concrete record.
type Resolved struct {
	Kind extract.EntityKind
	ID   uint
	Code string // canonical short code, empty for kinds without one
	Name string // display title of the record
}

// Resolve binds a list of extracted entities to records in the user's
// client. Entities with a code go through a point lookup and are silently
// dropped when not found or not accessible; entities with only a name go
// through a bounded LIKE search.
func (r *Retriever) Resolve(user models.User, entities []extract.Entity) []Resolved {
	var out []Resolved
	for _, e := range entities {
		if e.Code != "" {
			kind, id, ok := extract.ParseCode(e.Code)
			if !ok {
				continue
			}
			res, err := r.lookup(user, kind, id)
			if err != nil {
				continue
			}
			out = append(out, *res)
			continue
		}
		if e.Name != "" {
			matches, err := r.SearchByName(user, e.Kind, e.Name)
			if err != nil {
				continue
			}
			out = append(out, matches...)
		}
	}
	return out
}

// lookup dispatches a point lookup by kind and wraps the result.
func (r *Retriever) lookup(user models.User, kind extract.EntityKind, id uint) (*Resolved, error) {
	switch kind {
	case extract.KindProject:
		p, err := r.ProjectByID(user, id)
		if err != nil {
			return nil, err
		}
		return resolved(kind, p.ID, p.Name), nil
	case extract.KindTask:
		t, err := r.TaskByID(user, id)
		if err != nil {
			return nil, err
		}
		return resolved(kind, t.ID, t.Title), nil
	case extract.KindBug:
		b, err := r.BugByID(user, id)
		if err != nil {
			return nil, err
		}
		return resolved(kind, b.ID, b.Title), nil
	case extract.KindUserStory:
		s, err := r.UserStoryByID(user, id)
		if err != nil {
			return nil, err
		}
		return resolved(kind, s.ID, s.Title), nil
	case extract.KindUseCase:
		u, err := r.UseCaseByID(user, id)
		if err != nil {
			return nil, err
		}
		return resolved(kind, u.ID, u.Name), nil
	case extract.KindTestCase:
		tc, err := r.TestCaseByID(user, id)
		if err != nil {
			return nil, err
		}
		return resolved(kind, tc.ID, tc.Title), nil
	case extract.KindProgram:
		p, err := r.ProgramByID(user, id)
		if err != nil {
			return nil, err
		}
		return resolved(kind, p.ID, p.Name), nil
	case extract.KindSubtask, extract.KindUser:
		// No short-code form; unreachable via ParseCode.
		return nil, ErrNotFound
	}
	return nil, ErrNotFound
}

func resolved(kind extract.EntityKind, id uint, name string) *Resolved {
	return &Resolved{Kind: kind, ID: id, Code: extract.FormatCode(kind, id), Name: name}
}

// SearchByName finds up to maxNameMatches records of the given kind whose
// title contains the name, scoped to the user's client.
func (r *Retriever) SearchByName(user models.User, kind extract.EntityKind, name string) ([]Resolved, error) {
	pattern := "%" + name + "%"
	var out []Resolved

	switch kind {
	case extract.KindProject:
		var recs []models.Project
		err := r.projectScope(user).
			Where("projects.name LIKE ?", pattern).
			Limit(maxNameMatches).Find(&recs).Error
		if err != nil {
			return nil, fmt.Errorf("store: search projects %q: %w", name, err)
		}
		for _, p := range recs {
			out = append(out, *resolved(kind, p.ID, p.Name))
		}
	case extract.KindTask:
		var recs []models.Task
		err := r.taskScope(user).
			Where("tasks.title LIKE ?", pattern).
			Limit(maxNameMatches).Find(&recs).Error
		if err != nil {
			return nil, fmt.Errorf("store: search tasks %q: %w", name, err)
		}
		for _, t := range recs {
			out = append(out, *resolved(kind, t.ID, t.Title))
		}
	case extract.KindBug:
		var recs []models.Bug
		err := r.bugScope(user).
			Where("bugs.title LIKE ?", pattern).
			Limit(maxNameMatches).Find(&recs).Error
		if err != nil {
			return nil, fmt.Errorf("store: search bugs %q: %w", name, err)
		}
		for _, b := range recs {
			out = append(out, *resolved(kind, b.ID, b.Title))
		}
	case extract.KindUserStory:
		var recs []models.UserStory
		err := r.storyScope(user).
			Where("user_stories.title LIKE ?", pattern).
			Limit(maxNameMatches).Find(&recs).Error
		if err != nil {
			return nil, fmt.Errorf("store: search stories %q: %w", name, err)
		}
		for _, s := range recs {
			out = append(out, *resolved(kind, s.ID, s.Title))
		}
	default:
		// Remaining kinds are rare in free-text name references; the
		// assistant asks the user to use short codes instead.
		return nil, nil
	}
	return out, nil
}
