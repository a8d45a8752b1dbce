package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pders01/profe/internal/storage"
)

// schoolNameWorkers bounds concurrent school lookups.
const schoolNameWorkers = 4

func queryParam(q string) url.Values {
	return url.Values{"q": []string{q}}
}

// SearchSchools calls GET /search/schools?q=.
func (c *Client) SearchSchools(ctx context.Context, q string) ([]storage.School, error) {
	var schools []storage.School
	if err := c.get(ctx, request{path: "/search/schools", query: queryParam(q)}, &schools); err != nil {
		return nil, fmt.Errorf("searching schools: %w", err)
	}
	return schools, nil
}

// SearchProfessors calls GET /search/professor?q=.
func (c *Client) SearchProfessors(ctx context.Context, q string) ([]storage.Professor, error) {
	var professors []storage.Professor
	if err := c.get(ctx, request{path: "/search/professor", query: queryParam(q)}, &professors); err != nil {
		return nil, fmt.Errorf("searching professors: %w", err)
	}
	return professors, nil
}

// SearchNotes calls GET /search/{professorID}/notes?q=.
func (c *Client) SearchNotes(ctx context.Context, professorID int64, q string) ([]storage.Note, error) {
	var notes []storage.Note
	path := "/search/" + strconv.FormatInt(professorID, 10) + "/notes"
	if err := c.get(ctx, request{path: path, query: queryParam(q)}, &notes); err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	return notes, nil
}

// Notes lists every note of a professor. Requires a token.
func (c *Client) Notes(ctx context.Context, professorID int64) ([]storage.Note, error) {
	var notes []storage.Note
	path := "/notes/" + strconv.FormatInt(professorID, 10)
	if err := c.get(ctx, request{path: path, auth: true}, &notes); err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

// School fetches a school with a page of its professors. Zero limit and
// offset are left to the server defaults.
func (c *Client) School(ctx context.Context, id int64, limit, offset int) (*storage.School, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	var school storage.School
	path := "/school/" + strconv.FormatInt(id, 10)
	if err := c.get(ctx, request{path: path, query: query}, &school); err != nil {
		return nil, fmt.Errorf("getting school %d: %w", id, err)
	}
	return &school, nil
}

// RandomSchools backs the landing view.
func (c *Client) RandomSchools(ctx context.Context) ([]storage.School, error) {
	var schools []storage.School
	if err := c.get(ctx, request{path: "/school/random"}, &schools); err != nil {
		return nil, fmt.Errorf("getting random schools: %w", err)
	}
	return schools, nil
}

// Reviews returns every review of a professor.
func (c *Client) Reviews(ctx context.Context, professorID int64) ([]storage.Review, error) {
	var reviews []storage.Review
	path := "/professor/" + strconv.FormatInt(professorID, 10)
	if err := c.get(ctx, request{path: path}, &reviews); err != nil {
		return nil, fmt.Errorf("getting reviews: %w", err)
	}
	return reviews, nil
}

// Tags returns the review tags of a professor.
func (c *Client) Tags(ctx context.Context, professorID int64) ([]string, error) {
	var tags []string
	path := "/reviews/" + strconv.FormatInt(professorID, 10) + "/tags"
	if err := c.get(ctx, request{path: path}, &tags); err != nil {
		return nil, fmt.Errorf("getting tags: %w", err)
	}
	return tags, nil
}

// SchoolNames resolves the names of the given school IDs, one lookup per
// unique ID. Schools that no longer exist are skipped; any other failure
// aborts the batch.
func (c *Client) SchoolNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	unique := slices.Compact(slices.Sorted(slices.Values(ids)))

	var mu sync.Mutex
	names := make(map[int64]string, len(unique))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(schoolNameWorkers)
	for _, id := range unique {
		if id <= 0 {
			continue
		}
		g.Go(func() error {
			school, err := c.School(gCtx, id, 1, 0)
			if err != nil {
				if IsNotFound(err) {
					return nil
				}
				return err
			}
			mu.Lock()
			names[id] = school.Name
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return names, fmt.Errorf("resolving school names: %w", err)
	}
	return names, nil
}

// ProfessorDetail bundles everything the professor page shows.
type ProfessorDetail struct {
	Reviews []storage.Review
	Tags    []string
	Stats   storage.ReviewStats
}

// Professor loads reviews and tags concurrently. Missing tags are not an
// error.
func (c *Client) Professor(ctx context.Context, professorID int64) (*ProfessorDetail, error) {
	var detail ProfessorDetail
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reviews, err := c.Reviews(gCtx, professorID)
		detail.Reviews = reviews
		return err
	})
	g.Go(func() error {
		tags, err := c.Tags(gCtx, professorID)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.log.Warnf("tags for professor %d: %v", professorID, err)
			}
			return nil
		}
		detail.Tags = tags
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	detail.Stats = storage.Stats(detail.Reviews)
	return &detail, nil
}
